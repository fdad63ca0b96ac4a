package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// Issuer is the issuer of session tokens.
	Issuer = "studychat"
	// KeyID is the key id written into the token header.
	KeyID = "v1"
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "studychat_session"
)

// UserClaims identifies the signed-in user of a request.
type UserClaims struct {
	UserID int32
	Email  string
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a session token for userID.
func GenerateAccessToken(userID int32, email string, issuedAt, expiresAt time.Time, secret []byte) (string, error) {
	claims := &sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   formatSubject(userID),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = KeyID

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ParseAccessToken verifies a session token and returns its claims.
func ParseAccessToken(tokenString string, secret []byte, now time.Time) (*UserClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kid, ok := t.Header["kid"].(string); !ok || kid != KeyID {
			return nil, errors.Errorf("unexpected kid: %v", t.Header["kid"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}

	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return nil, err
	}
	return &UserClaims{UserID: userID, Email: claims.Email}, nil
}
