package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/studychat/server/auth"
	"github.com/hrygo/studychat/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int32  `json:"id"`
	Email     string `json:"email"`
	CreatedTs int64  `json:"createdTs"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func convertUser(u *store.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedTs: u.CreatedTs}
}

// SignUp creates an account and starts a session for it.
func (s *APIV1Service) SignUp(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	user, err := s.Authenticator.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return toHTTPError(err)
	}
	return s.startSession(c, http.StatusCreated, user)
}

// SignIn starts a session for existing credentials.
func (s *APIV1Service) SignIn(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	user, err := s.Authenticator.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return toHTTPError(err)
	}
	return s.startSession(c, http.StatusOK, user)
}

// SignOut closes the view of the session, if any, and clears the cookie.
func (s *APIV1Service) SignOut(c echo.Context) error {
	if userID := auth.GetUserID(c.Request().Context()); userID != 0 {
		s.Sessions.End(userID)
	}
	c.SetCookie(s.sessionCookie("", time.Unix(0, 0)))
	return c.NoContent(http.StatusNoContent)
}

// GetCurrentUser returns the signed-in account.
func (s *APIV1Service) GetCurrentUser(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserID(ctx)
	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return toHTTPError(err)
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
	}
	return c.JSON(http.StatusOK, convertUser(user))
}

func (s *APIV1Service) startSession(c echo.Context, status int, user *store.User) error {
	token, expiresAt, err := s.Authenticator.IssueToken(user)
	if err != nil {
		return toHTTPError(err)
	}
	c.SetCookie(s.sessionCookie(token, expiresAt))
	return c.JSON(status, sessionResponse{
		User:      convertUser(user),
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (s *APIV1Service) sessionCookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !s.Profile.IsDev(),
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	return cookie
}
