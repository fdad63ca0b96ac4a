package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studychat/store"
)

type memoryUsers struct {
	users []*store.User
}

func (m *memoryUsers) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	u := *create
	u.Email = strings.ToLower(u.Email)
	u.ID = int32(len(m.users) + 1)
	m.users = append(m.users, &u)
	return &u, nil
}

func (m *memoryUsers) GetUser(_ context.Context, find *store.FindUser) (*store.User, error) {
	for _, u := range m.users {
		if find.Email != nil && u.Email != strings.ToLower(*find.Email) {
			continue
		}
		if find.ID != nil && u.ID != *find.ID {
			continue
		}
		return u, nil
	}
	return nil, nil
}

const testSecret = "test-secret"

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	a := NewAuthenticator(&memoryUsers{}, testSecret, time.Hour)

	user, err := a.SignUp(ctx, " Ada@Example.com ", "lovelace")
	require.NoError(t, err)
	assert.Equal(t, int32(1), user.ID)
	assert.NotEqual(t, "lovelace", user.PasswordHash)

	_, err = a.SignUp(ctx, "ada@example.com", "another")
	assert.ErrorIs(t, err, ErrEmailTaken)

	signedIn, err := a.SignIn(ctx, "ada@example.com", "lovelace")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)

	_, err = a.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.SignIn(ctx, "nobody@example.com", "lovelace")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	a := NewAuthenticator(&memoryUsers{}, testSecret, time.Hour)

	_, err := a.SignUp(context.Background(), "not-an-email", "password")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = a.SignUp(context.Background(), "ada@example.com", "12345")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuthenticator(&memoryUsers{}, testSecret, time.Hour)
	user := &store.User{ID: 7, Email: "ada@example.com"}

	token, expiresAt, err := a.IssueToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims := a.Authenticate(token)
	require.NotNil(t, claims)
	assert.Equal(t, int32(7), claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestAuthenticateRejects(t *testing.T) {
	a := NewAuthenticator(&memoryUsers{}, testSecret, time.Hour)
	user := &store.User{ID: 7, Email: "ada@example.com"}
	token, _, err := a.IssueToken(user)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, a.Authenticate(""))
	})
	t.Run("garbage", func(t *testing.T) {
		assert.Nil(t, a.Authenticate("not.a.token"))
	})
	t.Run("other secret", func(t *testing.T) {
		other := NewAuthenticator(&memoryUsers{}, "other-secret", time.Hour)
		assert.Nil(t, other.Authenticate(token))
	})
	t.Run("expired", func(t *testing.T) {
		a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { a.now = time.Now }()
		assert.Nil(t, a.Authenticate(token))
	})
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractBearerToken("bearer  abc"))
	assert.Equal(t, "", ExtractBearerToken("Basic abc"))
	assert.Equal(t, "", ExtractBearerToken("abc"))
}

func TestUserClaimsContext(t *testing.T) {
	ctx := context.Background()
	assert.Zero(t, GetUserID(ctx))
	assert.Nil(t, GetUserClaims(ctx))

	ctx = SetUserClaimsInContext(ctx, &UserClaims{UserID: 3, Email: "a@b.c"})
	assert.Equal(t, int32(3), GetUserID(ctx))
	assert.Equal(t, "a@b.c", GetUserClaims(ctx).Email)
}
