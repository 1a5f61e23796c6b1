// Package goroutine supervises the long running loops of the service, such as
// broker consumers and the dispatch job.
package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 16

// Manager starts named loops, recovers their panics and remembers which of
// them ended with an error before shutdown.
type Manager struct {
	wg   sync.WaitGroup
	sema chan struct{}

	mu     sync.Mutex
	errs   []error
	closed bool

	failed *atomic.Int32
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		sema:   make(chan struct{}, maxGoroutine),
		failed: atomic.NewInt32(0),
	}
}

// Go runs f in its own goroutine. It is skipped with a warning when the
// manager is closed or full.
func (g *Manager) Go(ctx context.Context, name string, f func(ctx context.Context) error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager is closed, not starting", "name", name)
		return
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "goroutine limit reached, not starting", "name", name, "limit", cap(g.sema))
		return
	}

	g.wg.Go(func() {
		defer func() { <-g.sema }()

		err := run(ctx, name, f)
		if err == nil || ctx.Err() != nil {
			slog.InfoContext(ctx, "goroutine finished", "name", name)
			return
		}

		slog.ErrorContext(ctx, "goroutine failed", "name", name, "error", err)
		g.failed.Inc()
		g.mu.Lock()
		g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
		g.mu.Unlock()
	})
}

func run(ctx context.Context, name string, f func(ctx context.Context) error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in goroutine", "name", name, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in goroutine", "name", name, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("panic: %v", rvr)
		}
	}()

	return f(ctx)
}

// IsAlive reports whether no loop has died on its own. Loops ended by
// context cancellation do not count.
func (g *Manager) IsAlive() bool {
	return g.failed.Load() == 0
}

// Wait stops accepting loops, waits for the running ones and returns their errors.
func (g *Manager) Wait() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
