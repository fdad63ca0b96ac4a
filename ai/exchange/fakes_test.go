package exchange

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/studychat/ai/attachment"
	"github.com/hrygo/studychat/ai/core/llm"
	"github.com/hrygo/studychat/store"
)

// mockStore is an in-memory ConversationStore with injectable failures.
type mockStore struct {
	mu       sync.Mutex
	chats    map[int32]*store.Chat
	messages []*store.Message
	nextID   int32

	createMessageErr map[store.Role]error
	updateErr        error
	deleteErr        error
	deleteEntered    chan struct{}
	deleteGate       chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		chats:            make(map[int32]*store.Chat),
		createMessageErr: make(map[store.Role]error),
	}
}

func (m *mockStore) CreateChat(_ context.Context, create *store.Chat) (*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := *create
	c.ID = m.nextID
	m.chats[c.ID] = &c
	out := c
	return &out, nil
}

func (m *mockStore) ListChats(_ context.Context, find *store.FindChat) ([]*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.Chat{}
	for _, c := range m.chats {
		if c.UserID != find.UserID || (find.ID != nil && c.ID != *find.ID) {
			continue
		}
		out := *c
		list = append(list, &out)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedTs != list[j].UpdatedTs {
			return list[i].UpdatedTs > list[j].UpdatedTs
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (m *mockStore) UpdateChat(_ context.Context, update *store.UpdateChat) (*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	c, ok := m.chats[update.ID]
	if !ok || c.UserID != update.UserID {
		return nil, store.ErrNotFound
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.UpdatedTs != nil {
		c.UpdatedTs = *update.UpdatedTs
	}
	out := *c
	return &out, nil
}

func (m *mockStore) DeleteChat(_ context.Context, del *store.DeleteChat) error {
	if m.deleteEntered != nil {
		close(m.deleteEntered)
	}
	if m.deleteGate != nil {
		<-m.deleteGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	c, ok := m.chats[del.ID]
	if !ok || c.UserID != del.UserID {
		return store.ErrNotFound
	}
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ChatID != del.ID {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	delete(m.chats, del.ID)
	return nil
}

func (m *mockStore) CreateMessage(_ context.Context, create *store.CreateMessage) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createMessageErr[create.Role]; err != nil {
		return nil, err
	}
	c, ok := m.chats[create.ChatID]
	if !ok || c.UserID != create.UserID {
		return nil, store.ErrNotFound
	}
	m.nextID++
	msg := &store.Message{
		UID:         fmt.Sprintf("msg-%d", m.nextID),
		Role:        create.Role,
		Content:     create.Content,
		Attachments: create.Attachments,
		CreatedTs:   create.CreatedTs,
		ID:          m.nextID,
		ChatID:      create.ChatID,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *mockStore) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[find.ChatID]
	if !ok || c.UserID != find.UserID {
		return []*store.Message{}, nil
	}
	list := []*store.Message{}
	for _, msg := range m.messages {
		if msg.ChatID == find.ChatID {
			list = append(list, msg)
		}
	}
	return list, nil
}

func (m *mockStore) messagesOf(chatID int32, role store.Role) []*store.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*store.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.Role == role {
			list = append(list, msg)
		}
	}
	return list
}

func (m *mockStore) chat(id int32) store.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.chats[id]
}

type completionCall struct {
	history []llm.Message
	text    string
	files   []attachment.Block
}

// mockCompleter records calls. When gate is set, each call blocks until
// gate receives or is closed.
type mockCompleter struct {
	mu      sync.Mutex
	calls   []completionCall
	reply   string
	err     error
	entered chan struct{}
	gate    chan struct{}
}

func (m *mockCompleter) Exchange(ctx context.Context, history []llm.Message, pendingText string, files []attachment.Block) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, completionCall{history: history, text: pendingText, files: files})
	entered, gate := m.entered, m.gate
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockCompleter) lastCall(t *testing.T) completionCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.calls)
	return m.calls[len(m.calls)-1]
}

type mockRecorder struct {
	mu        sync.Mutex
	exchanges map[string]int
	rejected  map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{exchanges: map[string]int{}, rejected: map[string]int{}}
}

func (r *mockRecorder) RecordExchange(_ bool, failedStep string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges[failedStep]++
}

func (r *mockRecorder) RecordCompletion(bool, time.Duration) {}

func (r *mockRecorder) RecordRejectedAttachment(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

// steppingClock advances one millisecond on every reading.
type steppingClock struct {
	ms atomic.Int64
}

func newSteppingClock() *steppingClock {
	c := &steppingClock{}
	c.ms.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	return c
}

func (c *steppingClock) Now() time.Time {
	return time.UnixMilli(c.ms.Add(1))
}

func (c *steppingClock) Advance(d time.Duration) {
	c.ms.Add(d.Milliseconds())
}

type fixture struct {
	store     *mockStore
	completer *mockCompleter
	recorder  *mockRecorder
	clock     *steppingClock
	pipeline  *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMockStore(),
		completer: &mockCompleter{reply: "Start with a base case."},
		recorder:  newMockRecorder(),
		clock:     newSteppingClock(),
	}
	f.pipeline = NewPipeline(f.store, f.completer, nil, f.recorder)
	f.pipeline.now = f.clock.Now
	return f
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for x := 0; x < 16; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
