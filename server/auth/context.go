package auth

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

// ContextKey is the key type of values stored in a request context.
type ContextKey int

const (
	// UserIDContextKey holds the int32 ID of the signed-in user.
	UserIDContextKey ContextKey = iota
	// UserClaimsContextKey holds the *UserClaims of the signed-in user.
	UserClaimsContextKey
)

// GetUserID returns the signed-in user ID, or 0 when there is none.
func GetUserID(ctx context.Context) int32 {
	if v, ok := ctx.Value(UserIDContextKey).(int32); ok {
		return v
	}
	return 0
}

// GetUserClaims returns the claims of the signed-in user, or nil.
func GetUserClaims(ctx context.Context) *UserClaims {
	if v, ok := ctx.Value(UserClaimsContextKey).(*UserClaims); ok {
		return v
	}
	return nil
}

// SetUserClaimsInContext stores claims and the user ID in ctx.
func SetUserClaimsInContext(ctx context.Context, claims *UserClaims) context.Context {
	ctx = context.WithValue(ctx, UserClaimsContextKey, claims)
	return context.WithValue(ctx, UserIDContextKey, claims.UserID)
}

func formatSubject(userID int32) string {
	return strconv.FormatInt(int64(userID), 10)
}

func parseSubject(subject string) (int32, error) {
	id, err := strconv.ParseInt(subject, 10, 32)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid subject %q", subject)
	}
	return int32(id), nil
}
