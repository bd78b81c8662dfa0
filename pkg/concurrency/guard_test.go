package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRejectsConcurrentRuns(t *testing.T) {
	g := NewConcurrencyGuard()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := g.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()

	// Slot is free again once the first run finishes.
	require.NoError(t, g.Execute(func() error { return nil }))
}

func TestExecutePropagatesTaskError(t *testing.T) {
	g := NewConcurrencyGuard()
	boom := errors.New("boom")
	assert.ErrorIs(t, g.Execute(func() error { return boom }), boom)
}

func TestExecuteWithContextRejectsCanceledContext(t *testing.T) {
	g := NewConcurrencyGuard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := g.ExecuteWithContext(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)

	// The canceled attempt must not have occupied the slot.
	require.NoError(t, g.ExecuteWithContext(context.Background(), func(ctx context.Context) error {
		return nil
	}))
}
