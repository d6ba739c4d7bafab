package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/gavel-live/internal/infra/events"
)

func TestOptional_FailureKeepsGroupRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// A broker disconnect ends the consumer
	consumerDone := make(chan struct{})
	g.Go(optional(logger, "admin consumer", func() error {
		defer close(consumerDone)
		return events.ErrConsumerClosed
	}))

	// A core member that only stops on cancellation
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	<-consumerDone
	select {
	case <-gctx.Done():
		t.Fatal("optional failure cancelled the group")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	require.NoError(t, g.Wait())
}

func TestOptional_ReturnsNilOnSuccess(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	called := false
	err := optional(logger, "noop", func() error {
		called = true
		return nil
	})()

	assert.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, optional(logger, "failing", func() error { return errors.New("boom") })())
}
