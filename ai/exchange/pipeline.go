// Package exchange runs the send/reply cycle of a chat and keeps the
// per-user view of chats, turns and pending attachments.
package exchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/studychat/ai"
	"github.com/hrygo/studychat/ai/attachment"
	"github.com/hrygo/studychat/ai/core/llm"
	"github.com/hrygo/studychat/ai/preview"
	"github.com/hrygo/studychat/store"
)

// ConversationStore is the persistence the pipeline needs.
// *store.Store satisfies it.
type ConversationStore interface {
	CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error)
	ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error)
	UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error)
	DeleteChat(ctx context.Context, delete *store.DeleteChat) error
	CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error)
	ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error)
}

// Completer produces the assistant reply. *llm.Client satisfies it.
type Completer interface {
	Exchange(ctx context.Context, history []llm.Message, pendingText string, files []attachment.Block) (string, error)
}

// Recorder receives exchange metrics.
type Recorder interface {
	RecordExchange(withFiles bool, failedStep string, latency time.Duration)
	RecordCompletion(withFiles bool, latency time.Duration)
	RecordRejectedAttachment(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordExchange(bool, string, time.Duration) {}
func (nopRecorder) RecordCompletion(bool, time.Duration)       {}
func (nopRecorder) RecordRejectedAttachment(string)            {}

// Turn is a persisted message as shown in a view. Previews holds one
// preview handle per attachment, "" where there is none.
type Turn struct {
	*store.Message
	Previews []string
}

func newTurn(m *store.Message, previews []string) *Turn {
	if previews == nil && len(m.Attachments) > 0 {
		previews = make([]string, len(m.Attachments))
	}
	return &Turn{Message: m, Previews: previews}
}

func (t *Turn) handles() []string {
	list := make([]string, 0, len(t.Previews))
	for _, h := range t.Previews {
		if h != "" {
			list = append(list, h)
		}
	}
	return list
}

// Outcome reports what an exchange persisted. On failure it holds the
// turns written before the failing step.
type Outcome struct {
	ChatID        int32
	UserTurn      *Turn
	AssistantTurn *Turn
	Title         string
}

// Pipeline runs exchanges. It is shared by every view of the process.
type Pipeline struct {
	store     ConversationStore
	completer Completer
	previews  *preview.Registry
	recorder  Recorder
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[int32]struct{}
}

func NewPipeline(store ConversationStore, completer Completer, previews *preview.Registry, recorder Recorder) *Pipeline {
	if previews == nil {
		previews = preview.NewRegistry()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{
		store:     store,
		completer: completer,
		previews:  previews,
		recorder:  recorder,
		now:       time.Now,
		inFlight:  make(map[int32]struct{}),
	}
}

// Previews returns the registry holding preview handles.
func (p *Pipeline) Previews() *preview.Registry {
	return p.previews
}

// InFlight reports whether chatID is waiting for a reply.
func (p *Pipeline) InFlight(chatID int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inFlight[chatID]
	return ok
}

func (p *Pipeline) acquire(chatID int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[chatID]; ok {
		return false
	}
	p.inFlight[chatID] = struct{}{}
	return true
}

func (p *Pipeline) release(chatID int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, chatID)
}

func (p *Pipeline) timestamp() int64 {
	return p.now().UnixMilli()
}

// observer is told about persisted turns and chat list changes while an
// exchange runs.
type observer interface {
	appendTurn(chatID int32, turn *Turn)
	refreshChats(ctx context.Context)
}

type request struct {
	userID  int32
	chatID  int32
	text    string // sanitized
	files   []*PendingAttachment
	history []llm.Message
	first   bool
}

func (p *Pipeline) run(ctx context.Context, req *request, obs observer) (*Outcome, error) {
	start := time.Now()
	withFiles := len(req.files) > 0
	out := &Outcome{ChatID: req.chatID}

	fail := func(step Step, err error) (*Outcome, error) {
		if errors.Is(err, store.ErrNotFound) {
			err = ErrChatNotFound
		}
		slog.Error("exchange aborted", "chat_id", req.chatID, "step", step, "error", err)
		p.recorder.RecordExchange(withFiles, string(step), time.Since(start))
		return out, &StepError{Step: step, Err: err}
	}

	var blocks []attachment.Block
	if withFiles {
		files := make([]attachment.File, len(req.files))
		for i, f := range req.files {
			files[i] = f
		}
		var err error
		if blocks, err = attachment.EncodeAll(ctx, files); err != nil {
			return fail(StepEncode, err)
		}
	}

	var descriptors []store.AttachmentDescriptor
	for _, f := range req.files {
		descriptors = append(descriptors, f.descriptor())
	}
	previews := p.createPreviews(ctx, req.userID, req.files)

	userMsg, err := p.store.CreateMessage(ctx, &store.CreateMessage{
		Role:        store.RoleUser,
		Content:     req.text,
		Attachments: descriptors,
		CreatedTs:   p.timestamp(),
		ChatID:      req.chatID,
		UserID:      req.userID,
	})
	if err != nil {
		p.previews.Release(previews...)
		return fail(StepPersistUser, err)
	}
	out.UserTurn = newTurn(userMsg, previews)
	obs.appendTurn(req.chatID, out.UserTurn)

	if req.first {
		source := req.text
		if source == "" {
			source = ai.FileUploadTitleSource
		}
		title := ai.SummarizeTitle(source)
		if _, err := p.store.UpdateChat(ctx, &store.UpdateChat{ID: req.chatID, UserID: req.userID, Title: &title}); err != nil {
			slog.Warn("failed to update chat title", "chat_id", req.chatID, "error", err)
		} else {
			out.Title = title
		}
		obs.refreshChats(ctx)
	}

	prompt := req.text
	if prompt == "" {
		prompt = llm.AttachmentPlaceholder
	}
	completionStart := time.Now()
	reply, err := p.completer.Exchange(ctx, req.history, prompt, blocks)
	p.recorder.RecordCompletion(withFiles, time.Since(completionStart))
	if err != nil {
		return fail(StepComplete, err)
	}

	assistantMsg, err := p.store.CreateMessage(ctx, &store.CreateMessage{
		Role:      store.RoleAssistant,
		Content:   reply,
		CreatedTs: p.timestamp(),
		ChatID:    req.chatID,
		UserID:    req.userID,
	})
	if err != nil {
		return fail(StepPersistAssistant, err)
	}
	out.AssistantTurn = newTurn(assistantMsg, nil)
	obs.appendTurn(req.chatID, out.AssistantTurn)

	updatedTs := p.timestamp()
	if _, err := p.store.UpdateChat(ctx, &store.UpdateChat{ID: req.chatID, UserID: req.userID, UpdatedTs: &updatedTs}); err != nil {
		slog.Warn("failed to bump chat timestamp", "chat_id", req.chatID, "error", err)
	}
	obs.refreshChats(ctx)

	p.recorder.RecordExchange(withFiles, "", time.Since(start))
	slog.Info("exchange completed", "chat_id", req.chatID, "attachments", len(req.files), "duration", time.Since(start))
	return out, nil
}

// createPreviews derives a thumbnail handle for every image attachment.
// Failures leave that attachment without a preview.
func (p *Pipeline) createPreviews(ctx context.Context, userID int32, files []*PendingAttachment) []string {
	if len(files) == 0 {
		return nil
	}
	handles := make([]string, len(files))
	for i, f := range files {
		if attachment.KindOf(f.MIMEType()) != attachment.KindImage {
			continue
		}
		handle, err := p.createPreview(ctx, userID, f)
		if err != nil {
			slog.Warn("failed to create preview", "name", f.Name(), "error", err)
			continue
		}
		handles[i] = handle
	}
	return handles
}

func (p *Pipeline) createPreview(ctx context.Context, userID int32, f *PendingAttachment) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return p.previews.Create(ctx, userID, f.MIMEType(), data)
}

// historyOf converts loaded turns into completion history.
func historyOf(turns []*Turn) []llm.Message {
	history := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		content := t.Content
		if content == "" && len(t.Attachments) > 0 {
			content = llm.AttachmentPlaceholder
		}
		history = append(history, llm.Message{Role: string(t.Role), Content: content})
	}
	return history
}
