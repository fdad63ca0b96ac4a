package store

import (
	"context"
	"database/sql"
)

// Driver is the interface each database backend implements.
// Every chat and message operation is scoped to the owning user.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	IsInitialized(ctx context.Context) (bool, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Chat model related methods.
	CreateChat(ctx context.Context, create *Chat) (*Chat, error)
	ListChats(ctx context.Context, find *FindChat) ([]*Chat, error)
	UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error)
	DeleteChat(ctx context.Context, delete *DeleteChat) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
}
