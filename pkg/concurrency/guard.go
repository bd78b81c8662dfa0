package concurrency

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when a guarded operation is attempted while another one
// is still running.
var ErrBusy = errors.New("an import is already in progress")

// ConcurrencyGuard admits at most one operation at a time. The importer uses
// it to reject a second batch submission while one is still being driven.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

func (g *ConcurrencyGuard) acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return ErrBusy
	}
	g.isBusy = true
	return nil
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}

// Execute runs task if no other guarded operation is active, otherwise
// returns ErrBusy.
func (g *ConcurrencyGuard) Execute(task func() error) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.release()
	return task()
}

// ExecuteWithContext runs task with the given context under the guard. The
// context is checked before the task starts so an already-canceled run never
// occupies the slot.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.release()
	return task(ctx)
}
