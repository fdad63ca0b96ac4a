package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsGetAndEnd(t *testing.T) {
	f := newFixture()
	s := NewSessions(f.pipeline, time.Minute)

	v := s.Get(7)
	assert.Equal(t, int32(7), v.UserID())
	assert.Same(t, v, s.Get(7))
	assert.NotSame(t, v, s.Get(8))
	assert.Equal(t, 2, s.Len())

	s.End(7)
	assert.Equal(t, 1, s.Len())
	assert.True(t, v.isClosed())
	assert.NotSame(t, v, s.Get(7))
}

func TestSessionsSweepReleasesPreviews(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := NewSessions(f.pipeline, time.Minute)

	v := s.Get(7)
	_, err := v.NewChat(ctx)
	require.NoError(t, err)
	_, err = v.Attach([]*PendingAttachment{PendingFromBytes("a.png", "image/png", pngBytes(t))})
	require.NoError(t, err)
	_, err = v.Send(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, f.pipeline.Previews().Len())

	assert.Zero(t, s.Sweep(f.clock.Now()))

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep(f.clock.Now()))
	assert.Zero(t, s.Len())
	assert.Zero(t, f.pipeline.Previews().Len())
}

func TestSessionsSweepKeepsSendingViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.completer.entered = make(chan struct{}, 1)
	f.completer.gate = make(chan struct{})
	s := NewSessions(f.pipeline, time.Minute)

	v := s.Get(7)
	_, err := v.NewChat(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := v.Send(ctx, "hello")
		done <- err
	}()
	<-f.completer.entered

	f.clock.Advance(2 * time.Minute)
	assert.Zero(t, s.Sweep(f.clock.Now()))

	close(f.completer.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.Len())
}

func TestSessionsRunClosesAllOnShutdown(t *testing.T) {
	f := newFixture()
	s := NewSessions(f.pipeline, time.Minute)
	v := s.Get(7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
	assert.Zero(t, s.Len())
	assert.True(t, v.isClosed())
}
