package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/stacktrace"
)

// callHandlerWithRecover turns a handler panic into an error, so a poison
// message goes through the same redelivery path as any other failure.
func callHandlerWithRecover(ctx context.Context, broker string, fn func() error) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}

		stack := debug.Stack()
		var where any = string(stack)
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			where = paths
		}
		slog.ErrorContext(ctx, "message handler panicked", "broker", broker, "panic", rvr, "stack", where)

		err = fmt.Errorf("pkgmessage: %s handler panic: %v", broker, rvr)
	}()

	return fn()
}
