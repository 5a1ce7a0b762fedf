package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/cleaner/internal/core"
)

type fakeServer struct {
	stopped chan struct{}
}

func (f *fakeServer) Shutdown(context.Context) error {
	close(f.stopped)
	return nil
}

func TestStopServing_ShutsDownBeforeDraining(t *testing.T) {
	limiter := core.NewLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))

	// The in-flight request finishes only once the server has stopped.
	srv := &fakeServer{stopped: make(chan struct{})}
	go func() {
		<-srv.stopped
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stopServing(ctx, srv, limiter)

	assert.NoError(t, ctx.Err(), "draining waited for the deadline")
	assert.Zero(t, limiter.ActiveCount())
}
