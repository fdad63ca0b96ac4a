package exchange

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/studychat/ai"
	"github.com/hrygo/studychat/internal/security"
	"github.com/hrygo/studychat/store"
)

// View is one user's working state: the chat list, the open chat with its
// loaded turns, and the attachments staged for the next send.
//
// The mutex is never held across a store, encoding or completion call.
// A view with a zero user ID belongs to nobody and every operation on it
// is a no-op.
type View struct {
	pipeline *Pipeline
	userID   int32

	mu         sync.Mutex
	chats      []*store.Chat
	selected   *store.Chat
	turns      []*Turn
	pending    []*PendingAttachment
	sending    int
	lastError  string
	lastActive time.Time
	closed     bool
}

// NewView creates an empty view for userID.
func (p *Pipeline) NewView(userID int32) *View {
	return &View{
		pipeline:   p,
		userID:     userID,
		lastActive: p.now(),
	}
}

// Snapshot is a consistent copy of a view for rendering.
type Snapshot struct {
	Chats          []store.Chat
	SelectedChatID int32
	Turns          []*Turn
	Pending        []PendingInfo
	Sending        bool
	LastError      string
}

// UserID returns the owner of the view.
func (v *View) UserID() int32 {
	return v.userID
}

func (v *View) touch() {
	v.lastActive = v.pipeline.now()
}

// LoadChats replaces the chat list with the owner's chats, most recently
// updated first.
func (v *View) LoadChats(ctx context.Context) error {
	if v.userID == 0 {
		return nil
	}
	chats, err := v.pipeline.store.ListChats(ctx, &store.FindChat{UserID: v.userID})
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	v.chats = chats
	if v.selected != nil {
		for _, c := range chats {
			if c.ID == v.selected.ID {
				v.selected = c
				break
			}
		}
	}
	return nil
}

// NewChat creates an empty chat, puts it on top of the list and opens it.
func (v *View) NewChat(ctx context.Context) (*store.Chat, error) {
	if v.userID == 0 {
		return nil, nil
	}
	ts := v.pipeline.timestamp()
	chat, err := v.pipeline.store.CreateChat(ctx, &store.Chat{
		UID:       shortuuid.New(),
		UserID:    v.userID,
		Title:     ai.DefaultChatTitle,
		CreatedTs: ts,
		UpdatedTs: ts,
	})
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	v.chats = append([]*store.Chat{chat}, v.chats...)
	v.replaceTurnsLocked(chat, nil)
	return chat, nil
}

// SelectChat opens chatID and loads its turns, replacing the previous ones.
func (v *View) SelectChat(ctx context.Context, chatID int32) error {
	if v.userID == 0 {
		return nil
	}
	chat, err := v.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	messages, err := v.pipeline.store.ListMessages(ctx, &store.FindMessage{ChatID: chatID, UserID: v.userID})
	if err != nil {
		return err
	}
	turns := make([]*Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, newTurn(m, nil))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	v.replaceTurnsLocked(chat, turns)
	return nil
}

func (v *View) findChat(ctx context.Context, chatID int32) (*store.Chat, error) {
	chats, err := v.pipeline.store.ListChats(ctx, &store.FindChat{ID: &chatID, UserID: v.userID})
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, ErrChatNotFound
	}
	return chats[0], nil
}

// replaceTurnsLocked switches the open chat and releases the previews of
// the turns that are no longer shown.
func (v *View) replaceTurnsLocked(chat *store.Chat, turns []*Turn) {
	v.releaseTurnsLocked()
	v.selected = chat
	v.turns = turns
}

func (v *View) releaseTurnsLocked() {
	var handles []string
	for _, t := range v.turns {
		handles = append(handles, t.handles()...)
	}
	v.pipeline.previews.Release(handles...)
	v.turns = nil
}

// DeleteChat removes a chat. When it is the open chat the selection and
// its turns are cleared before the store is called. On store failure the
// chat list is reloaded.
func (v *View) DeleteChat(ctx context.Context, chatID int32) error {
	if v.userID == 0 {
		return nil
	}

	v.mu.Lock()
	v.touch()
	if v.selected != nil && v.selected.ID == chatID {
		v.releaseTurnsLocked()
		v.selected = nil
	}
	chats := make([]*store.Chat, 0, len(v.chats))
	for _, c := range v.chats {
		if c.ID != chatID {
			chats = append(chats, c)
		}
	}
	v.chats = chats
	v.mu.Unlock()

	err := v.pipeline.store.DeleteChat(ctx, &store.DeleteChat{ID: chatID, UserID: v.userID})
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		err = ErrChatNotFound
	}
	if reloadErr := v.LoadChats(ctx); reloadErr != nil {
		slog.Warn("failed to reload chats after delete failure", "error", reloadErr)
	}
	return err
}

// Attach validates files and stages the accepted ones. Rejected files are
// reported together in a multierror of *security.FileError and do not
// prevent the others from being staged.
func (v *View) Attach(files []*PendingAttachment) ([]*PendingAttachment, error) {
	if v.userID == 0 || len(files) == 0 {
		return nil, nil
	}
	metas := make([]security.FileMeta, len(files))
	for i, f := range files {
		metas[i] = f.meta()
	}
	accepted, err := security.ValidateFiles(metas)
	if err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				var ferr *security.FileError
				if errors.As(e, &ferr) {
					v.pipeline.recorder.RecordRejectedAttachment(ferr.Reason)
				}
			}
		}
	}

	staged := make([]*PendingAttachment, 0, len(accepted))
	for _, i := range accepted {
		staged = append(staged, files[i])
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	v.pending = append(v.pending, staged...)
	return staged, err
}

// RemovePending unstages one attachment.
func (v *View) RemovePending(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	for i, a := range v.pending {
		if a.ID == id {
			v.pending = append(v.pending[:i:i], v.pending[i+1:]...)
			return true
		}
	}
	return false
}

// ClearPending unstages every attachment and returns how many there were.
func (v *View) ClearPending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	n := len(v.pending)
	v.pending = nil
	return n
}

// Send runs one exchange on the open chat with text and the staged
// attachments. At most one exchange per chat runs at a time across the
// whole process; a concurrent send gets ErrExchangeInFlight.
func (v *View) Send(ctx context.Context, text string) (*Outcome, error) {
	if v.userID == 0 {
		return nil, nil
	}
	text = security.SanitizeInput(text)

	v.mu.Lock()
	v.touch()
	chat := v.selected
	if chat == nil {
		v.mu.Unlock()
		return nil, ErrNoChatSelected
	}
	if text == "" && len(v.pending) == 0 {
		v.mu.Unlock()
		return nil, ErrNothingToSend
	}
	if !v.pipeline.acquire(chat.ID) {
		v.mu.Unlock()
		return nil, ErrExchangeInFlight
	}
	files := v.pending
	v.pending = nil
	req := &request{
		userID:  v.userID,
		chatID:  chat.ID,
		text:    text,
		files:   files,
		history: historyOf(v.turns),
		first:   len(v.turns) == 0,
	}
	v.sending++
	v.mu.Unlock()

	defer func() {
		v.pipeline.release(chat.ID)
		v.mu.Lock()
		v.sending--
		v.mu.Unlock()
	}()

	out, err := v.pipeline.run(ctx, req, v)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		var stepErr *StepError
		if errors.As(err, &stepErr) && stepErr.Step == StepEncode {
			v.pending = append(files, v.pending...)
		}
		v.lastError = err.Error()
		return out, err
	}
	v.lastError = ""
	return out, nil
}

func (v *View) appendTurn(chatID int32, turn *Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.selected == nil || v.selected.ID != chatID {
		v.pipeline.previews.Release(turn.handles()...)
		return
	}
	v.turns = append(v.turns, turn)
}

func (v *View) refreshChats(ctx context.Context) {
	if err := v.LoadChats(ctx); err != nil {
		slog.Warn("failed to reload chats", "user_id", v.userID, "error", err)
	}
}

// Snapshot copies the view state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		Chats:     make([]store.Chat, 0, len(v.chats)),
		Turns:     append([]*Turn(nil), v.turns...),
		Pending:   make([]PendingInfo, 0, len(v.pending)),
		LastError: v.lastError,
	}
	for _, c := range v.chats {
		s.Chats = append(s.Chats, *c)
	}
	for _, a := range v.pending {
		s.Pending = append(s.Pending, a.info())
	}
	if v.selected != nil {
		s.SelectedChatID = v.selected.ID
		s.Sending = v.pipeline.InFlight(v.selected.ID)
	}
	return s
}

// Close releases the previews held by the view and drops staged files.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.releaseTurnsLocked()
	v.pending = nil
	v.selected = nil
	v.closed = true
}

// idle reports whether the view has been untouched since before cutoff
// and has no exchange running.
func (v *View) idle(cutoff time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sending == 0 && v.lastActive.Before(cutoff)
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
