package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studychat/ai/attachment"
	"github.com/hrygo/studychat/ai/core/llm"
	"github.com/hrygo/studychat/internal/profile"
	"github.com/hrygo/studychat/internal/security"
	"github.com/hrygo/studychat/store"
	"github.com/hrygo/studychat/store/db/sqlite"
)

type staticCompleter struct{}

func (staticCompleter) Exchange(context.Context, []llm.Message, string, []attachment.Block) (string, error) {
	return "ok", nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	p := &profile.Profile{
		Mode:    "dev",
		Driver:  "sqlite",
		DSN:     filepath.Join(t.TempDir(), "studychat_test.db"),
		Secret:  "0123456789abcdef-test",
		Addr:    "127.0.0.1",
		Port:    0,
		Version: "0.1.0-dev",
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	return newServer(context.Background(), p, s, staticCompleter{})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), "0.1.0-dev")
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, security.ContentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, security.ReferrerPolicy, rec.Header().Get("Referrer-Policy"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.Sessions().Get(1)

	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "studychat_session_open_views 1")
	assert.Contains(t, rec.Body.String(), "studychat_preview_live_handles 0")
}

func TestAPIRequiresSession(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.echoServer.ListenerAddr() != nil }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
