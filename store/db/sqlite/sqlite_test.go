package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studychat/internal/profile"
	"github.com/hrygo/studychat/store"
	"github.com/hrygo/studychat/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "studychat_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func createUser(t *testing.T, s *store.Store, email string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &store.User{Email: email, PasswordHash: "x", CreatedTs: 1})
	require.NoError(t, err)
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	initialized, err := s.GetDriver().IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, initialized)
	require.NoError(t, s.Migrate(ctx))

	lines, err := s.MigrationStatus()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "applied")
}

func TestUserEmailIsNormalized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createUser(t, s, "  Ada@Example.com ")
	assert.Equal(t, "ada@example.com", created.Email)

	email := "ADA@example.com"
	found, err := s.GetUser(ctx, &store.FindUser{Email: &email})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing := "nobody@example.com"
	found, err = s.GetUser(ctx, &store.FindUser{Email: &missing})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestChatLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")

	older, err := s.CreateChat(ctx, &store.Chat{UID: "a", UserID: owner.ID, Title: "New Chat", CreatedTs: 10, UpdatedTs: 10})
	require.NoError(t, err)
	newer, err := s.CreateChat(ctx, &store.Chat{UID: "b", UserID: owner.ID, Title: "New Chat", CreatedTs: 20, UpdatedTs: 20})
	require.NoError(t, err)

	list, err := s.ListChats(ctx, &store.FindChat{UserID: owner.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	title := "Learn recursion fast"
	ts := int64(30)
	updated, err := s.UpdateChat(ctx, &store.UpdateChat{ID: older.ID, UserID: owner.ID, Title: &title, UpdatedTs: &ts})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	list, err = s.ListChats(ctx, &store.FindChat{UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, older.ID, list[0].ID)

	require.NoError(t, s.DeleteChat(ctx, &store.DeleteChat{ID: older.ID, UserID: owner.ID}))
	_, err = s.GetChat(ctx, &store.FindChat{ID: &older.ID, UserID: owner.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteChat(ctx, &store.DeleteChat{ID: older.ID, UserID: owner.ID}), store.ErrNotFound)
}

func TestChatsAreOwnerScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	other := createUser(t, s, "other@example.com")

	chat, err := s.CreateChat(ctx, &store.Chat{UID: "a", UserID: owner.ID, Title: "New Chat", CreatedTs: 1, UpdatedTs: 1})
	require.NoError(t, err)

	list, err := s.ListChats(ctx, &store.FindChat{UserID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, list)

	title := "stolen"
	_, err = s.UpdateChat(ctx, &store.UpdateChat{ID: chat.ID, UserID: other.ID, Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteChat(ctx, &store.DeleteChat{ID: chat.ID, UserID: other.ID}), store.ErrNotFound)

	_, err = s.CreateMessage(ctx, &store.CreateMessage{Role: store.RoleUser, Content: "hi", CreatedTs: 2, ChatID: chat.ID, UserID: other.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)

	messages, err := s.ListMessages(ctx, &store.FindMessage{ChatID: chat.ID, UserID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMessagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	chat, err := s.CreateChat(ctx, &store.Chat{UID: "a", UserID: owner.ID, Title: "New Chat", CreatedTs: 1, UpdatedTs: 1})
	require.NoError(t, err)

	attachments := []store.AttachmentDescriptor{
		{Name: "diagram.png", Type: "image/png", Size: 2048},
		{Name: "notes.pdf", Type: "application/pdf", Size: 4096},
	}
	user, err := s.CreateMessage(ctx, &store.CreateMessage{
		Role: store.RoleUser, Attachments: attachments, CreatedTs: 5, ChatID: chat.ID, UserID: owner.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.UID)

	_, err = s.CreateMessage(ctx, &store.CreateMessage{
		Role: store.RoleAssistant, Content: "Here is what I see.", CreatedTs: 5, ChatID: chat.ID, UserID: owner.ID,
	})
	require.NoError(t, err)

	messages, err := s.ListMessages(ctx, &store.FindMessage{ChatID: chat.ID, UserID: owner.ID})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, "", messages[0].Content)
	assert.Equal(t, attachments, messages[0].Attachments)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Nil(t, messages[1].Attachments)
}

func TestEmptyMessageIsRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	chat, err := s.CreateChat(ctx, &store.Chat{UID: "a", UserID: owner.ID, Title: "New Chat", CreatedTs: 1, UpdatedTs: 1})
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, &store.CreateMessage{Role: store.RoleUser, CreatedTs: 2, ChatID: chat.ID, UserID: owner.ID})
	assert.Error(t, err)
}

func TestDeleteChatCascadesToMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	chat, err := s.CreateChat(ctx, &store.Chat{UID: "a", UserID: owner.ID, Title: "New Chat", CreatedTs: 1, UpdatedTs: 1})
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, &store.CreateMessage{Role: store.RoleUser, Content: "hi", CreatedTs: 2, ChatID: chat.ID, UserID: owner.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChat(ctx, &store.DeleteChat{ID: chat.ID, UserID: owner.ID}))

	var count int
	require.NoError(t, s.GetDriver().GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE chat_id = ?", chat.ID).Scan(&count))
	assert.Zero(t, count)
}
