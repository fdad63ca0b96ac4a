// Package server assembles the HTTP server and the background services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/studychat/ai"
	"github.com/hrygo/studychat/ai/core/llm"
	"github.com/hrygo/studychat/ai/exchange"
	"github.com/hrygo/studychat/ai/metrics"
	"github.com/hrygo/studychat/ai/preview"
	"github.com/hrygo/studychat/internal/profile"
	"github.com/hrygo/studychat/internal/security"
	"github.com/hrygo/studychat/internal/util"
	apiv1 "github.com/hrygo/studychat/server/router/api/v1"
	"github.com/hrygo/studychat/store"
)

const (
	// Up to ten 10 MiB attachments plus multipart overhead.
	bodyLimit       = "110M"
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	sessions   *exchange.Sessions
	metrics    *metrics.PrometheusExporter
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	completer, err := llm.NewClient(&llm.Config{
		Model:        profile.LLMModel,
		APIKey:       profile.LLMAPIKey,
		BaseURL:      profile.LLMBaseURL,
		SystemPrompt: ai.StudyMentorPersona,
		Timeout:      profile.LLMTimeout,
		SiteURL:      profile.SiteURL,
		SiteName:     profile.SiteName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return newServer(ctx, profile, store, completer), nil
}

func newServer(_ context.Context, profile *profile.Profile, store *store.Store, completer exchange.Completer) *Server {
	s := &Server{
		Profile: profile,
		Store:   store,
		metrics: metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}

	previews := preview.NewRegistry()
	pipeline := exchange.NewPipeline(store, completer, previews, s.metrics)
	s.sessions = exchange.NewSessions(pipeline, exchange.DefaultIdleTimeout)

	s.metrics.RegisterGauge("session", "open_views", "Number of open chat views.", func() float64 {
		return float64(s.sessions.Len())
	})
	s.metrics.RegisterGauge("preview", "live_handles", "Number of live attachment previews.", func() float64 {
		return float64(previews.Len())
	})

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	echoServer.Use(requestLogger())
	echoServer.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         security.XSSProtection,
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         security.FrameOptions,
		ContentSecurityPolicy: security.ContentSecurityPolicy,
		ReferrerPolicy:        security.ReferrerPolicy,
	}))
	echoServer.Use(middleware.BodyLimit(bodyLimit))
	echoServer.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// Thumbnails are already compressed.
			return util.HasPrefixes(c.Request().URL.Path, "/api/v1/previews/")
		},
		Level: 5,
	}))
	s.echoServer = echoServer

	echoServer.GET("/healthz", s.healthz)
	echoServer.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	apiv1.NewAPIV1Service(profile, store, s.sessions).RegisterRoutes(echoServer)
	return s
}

func (*Server) Name() string { return "http server" }

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, strconv.Itoa(s.Profile.Port))
	slog.Info("starting http server", "address", address)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echoServer.Start(address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", address, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("http server stopped")
	return nil
}

// Sessions returns the chat views served by this server. Its Run method
// sweeps idle views and must run next to the server.
func (s *Server) Sessions() *exchange.Sessions {
	return s.sessions
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.GetDriver().GetDB().PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": s.Profile.Version})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogRequestID: true,
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return util.HasPrefixes(c.Request().URL.Path, "/healthz", "/metrics")
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				} else {
					level = slog.LevelWarn
				}
			}
			slog.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	})
}
