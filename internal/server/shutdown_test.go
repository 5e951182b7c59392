package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
)

func newTestGracefulServer() *GracefulServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGracefulServer(&http.Server{Addr: "127.0.0.1:0"}, logger, config.ServerConfig{ShutdownTimeout: time.Second})
}

func TestGracefulServer_ShutdownRunsHooks(t *testing.T) {
	gs := newTestGracefulServer()

	var calls atomic.Int32
	for range 3 {
		gs.RegisterShutdownHook(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
	}

	require.NoError(t, gs.Shutdown(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGracefulServer_ShutdownJoinsErrors(t *testing.T) {
	gs := newTestGracefulServer()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	gs.RegisterShutdownHook(func(context.Context) error { return errA })
	gs.RegisterShutdownHook(func(context.Context) error { return nil })
	gs.RegisterShutdownHook(func(context.Context) error { return errB })

	err := gs.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestGracefulServer_ShutdownTimeout(t *testing.T) {
	gs := newTestGracefulServer()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	gs.RegisterShutdownHook(func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gs.Shutdown(ctx), context.DeadlineExceeded)
}

func TestGracefulServer_RunStopsOnCancel(t *testing.T) {
	gs := newTestGracefulServer()
	var closed atomic.Bool
	gs.RegisterShutdownHook(func(context.Context) error {
		closed.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.True(t, closed.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
