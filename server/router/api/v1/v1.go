package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/studychat/ai/exchange"
	"github.com/hrygo/studychat/internal/profile"
	"github.com/hrygo/studychat/plugin/markdown"
	"github.com/hrygo/studychat/server/auth"
	"github.com/hrygo/studychat/store"
)

type APIV1Service struct {
	// Shared Infra
	MarkdownService markdown.Service
	Profile         *profile.Profile
	Store           *store.Store
	Authenticator   *auth.Authenticator
	Sessions        *exchange.Sessions
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, sessions *exchange.Sessions) *APIV1Service {
	return &APIV1Service{
		MarkdownService: markdown.NewService(markdown.WithHardWraps()),
		Profile:         profile,
		Store:           store,
		Authenticator:   auth.NewAuthenticator(store, profile.Secret, profile.SessionTTL()),
		Sessions:        sessions,
	}
}

// RegisterRoutes mounts the JSON API under /api/v1.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	corsHandler := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	})
	apiGroup := echoServer.Group("/api/v1", corsHandler, s.authMiddleware)

	apiGroup.POST("/auth/signup", s.SignUp)
	apiGroup.POST("/auth/signin", s.SignIn)
	apiGroup.POST("/auth/signout", s.SignOut)
	apiGroup.GET("/auth/me", s.GetCurrentUser)

	apiGroup.GET("/chats", s.ListChats)
	apiGroup.POST("/chats", s.CreateChat)
	apiGroup.DELETE("/chats/:id", s.DeleteChat)
	apiGroup.POST("/chats/:id/select", s.SelectChat)

	apiGroup.GET("/view", s.GetView)
	apiGroup.POST("/pending", s.UploadPending)
	apiGroup.DELETE("/pending/:id", s.RemovePending)
	apiGroup.DELETE("/pending", s.ClearPending)
	apiGroup.POST("/messages", s.SendMessage)
	apiGroup.GET("/previews/:handle", s.GetPreview)
}

// publicPaths are reachable without a session.
var publicPaths = map[string]bool{
	"/api/v1/auth/signup":  true,
	"/api/v1/auth/signin":  true,
	"/api/v1/auth/signout": true,
}

// authMiddleware resolves the session from the cookie or a bearer token.
// Non-public routes without a valid session get 401.
func (s *APIV1Service) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodOptions {
			return next(c)
		}

		token := auth.ExtractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			if cookie, err := c.Cookie(auth.SessionCookieName); err == nil {
				token = cookie.Value
			}
		}

		claims := s.Authenticator.Authenticate(token)
		if claims == nil {
			if publicPaths[c.Path()] {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}

		ctx := auth.SetUserClaimsInContext(c.Request().Context(), claims)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// currentView returns the view of the signed-in user.
func (s *APIV1Service) currentView(c echo.Context) *exchange.View {
	return s.Sessions.Get(auth.GetUserID(c.Request().Context()))
}
