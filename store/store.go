package store

import (
	"context"
	"errors"
	"strings"

	"github.com/hrygo/studychat/internal/profile"
)

// ErrNotFound is returned when a row does not exist or is not owned by the caller.
var ErrNotFound = errors.New("not found")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	create.Email = normalizeEmail(create.Email)
	return s.driver.CreateUser(ctx, create)
}

// GetUser returns the matching user, or nil when there is none.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.Email != nil {
		email := normalizeEmail(*find.Email)
		find = &FindUser{ID: find.ID, Email: &email}
	}
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) CreateChat(ctx context.Context, create *Chat) (*Chat, error) {
	return s.driver.CreateChat(ctx, create)
}

// ListChats returns the chats of find.UserID, most recently updated first.
func (s *Store) ListChats(ctx context.Context, find *FindChat) ([]*Chat, error) {
	return s.driver.ListChats(ctx, find)
}

// GetChat returns a single owned chat or ErrNotFound.
func (s *Store) GetChat(ctx context.Context, find *FindChat) (*Chat, error) {
	list, err := s.driver.ListChats(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (s *Store) UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error) {
	return s.driver.UpdateChat(ctx, update)
}

// DeleteChat removes an owned chat; its messages are removed by cascade.
func (s *Store) DeleteChat(ctx context.Context, delete *DeleteChat) error {
	return s.driver.DeleteChat(ctx, delete)
}

func (s *Store) CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error) {
	return s.driver.CreateMessage(ctx, create)
}

// ListMessages returns the messages of an owned chat in creation order.
func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
