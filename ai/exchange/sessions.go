package exchange

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/studychat/ai/preview"
)

// DefaultIdleTimeout is how long an untouched view is kept.
const DefaultIdleTimeout = 30 * time.Minute

// Sessions keeps one view per signed-in user and closes idle ones.
type Sessions struct {
	pipeline    *Pipeline
	idleTimeout time.Duration
	interval    time.Duration

	mu    sync.Mutex
	views map[int32]*View
}

func NewSessions(pipeline *Pipeline, idleTimeout time.Duration) *Sessions {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Sessions{
		pipeline:    pipeline,
		idleTimeout: idleTimeout,
		interval:    idleTimeout / 4,
		views:       make(map[int32]*View),
	}
}

// Get returns the view of userID, creating it when needed.
func (s *Sessions) Get(userID int32) *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[userID]; ok && !v.isClosed() {
		v.mu.Lock()
		v.touch()
		v.mu.Unlock()
		return v
	}
	v := s.pipeline.NewView(userID)
	s.views[userID] = v
	return v
}

// Previews returns the registry holding the preview handles of every view.
func (s *Sessions) Previews() *preview.Registry {
	return s.pipeline.previews
}

// End closes the view of userID, if any.
func (s *Sessions) End(userID int32) {
	s.mu.Lock()
	v, ok := s.views[userID]
	delete(s.views, userID)
	s.mu.Unlock()
	if ok {
		v.Close()
	}
}

// Len returns the number of open views.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Sweep closes views idle since before now minus the idle timeout.
// Views with an exchange running are kept.
func (s *Sessions) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleTimeout)

	s.mu.Lock()
	var stale []*View
	for id, v := range s.views {
		if v.idle(cutoff) {
			stale = append(stale, v)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, v := range stale {
		slog.Debug("closing idle view", "user_id", v.UserID())
		v.Close()
	}
	return len(stale)
}

// CloseAll closes every view.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[int32]*View)
	s.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

func (*Sessions) Name() string { return "session sweeper" }

// Run sweeps idle views until ctx is done, then closes the rest.
func (s *Sessions) Run(ctx context.Context) error {
	slog.Info("starting session sweeper", "idle_timeout", s.idleTimeout)
	defer slog.Info("stopped session sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return nil
		case <-ticker.C:
			if n := s.Sweep(s.pipeline.now()); n > 0 {
				slog.Info("closed idle sessions", "count", n, "open", s.Len(), "previews", s.pipeline.previews.Len())
			}
		}
	}
}
