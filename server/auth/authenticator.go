// Package auth handles email/password accounts and signed session tokens.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hrygo/studychat/store"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

// UserStore is the account persistence. *store.Store satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, create *store.User) (*store.User, error)
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
}

// Authenticator signs users up and in and verifies their session tokens.
type Authenticator struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(store UserStore, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SignUp creates an account.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := a.store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return a.store.CreateUser(ctx, &store.User{
		Email:        email,
		PasswordHash: string(hash),
		CreatedTs:    a.now().UnixMilli(),
	})
}

// SignIn checks the credentials and returns the account.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.TrimSpace(email)
	user, err := a.store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken signs a session token for user.
func (a *Authenticator) IssueToken(user *store.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	token, err := GenerateAccessToken(user.ID, user.Email, now, expiresAt, a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Authenticate verifies a session token. It returns nil when the token is
// missing or invalid.
func (a *Authenticator) Authenticate(token string) *UserClaims {
	if token == "" {
		return nil
	}
	claims, err := ParseAccessToken(token, a.secret, a.now())
	if err != nil {
		return nil
	}
	return claims
}

// ExtractBearerToken returns the token of an "Authorization: Bearer" header.
func ExtractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
