package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/clock"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/leader"
	"go.uber.org/atomic"
)

const defaultDispatchInterval = time.Minute

// DispatchJob runs the dispatch scheduler on a fixed interval on the leader
// replica only. Leadership is asked for on every tick.
type DispatchJob struct {
	uc       ucScheduler
	elector  leader.Elector
	clock    clock.Clocker
	interval time.Duration

	running  *atomic.Bool
	lastTick *atomic.Time
}

func NewDispatchJob(uc ucScheduler, elector leader.Elector, clk clock.Clocker, interval time.Duration) *DispatchJob {
	if interval <= 0 {
		interval = defaultDispatchInterval
	}

	return &DispatchJob{
		uc:       uc,
		elector:  elector,
		clock:    clk,
		interval: interval,
		running:  atomic.NewBool(false),
		lastTick: atomic.NewTime(time.Time{}),
	}
}

// Run blocks until ctx is done.
func (j *DispatchJob) Run(ctx context.Context) error {
	j.running.Store(true)
	j.lastTick.Store(j.clock.Now())
	defer j.running.Store(false)

	slog.InfoContext(ctx, "dispatch job started", "interval", j.interval.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "dispatch job stopped")
			return nil
		case <-ticker.C:
			j.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass if this replica is leader.
func (j *DispatchJob) Tick(ctx context.Context) {
	j.lastTick.Store(j.clock.Now())

	if !j.elector.IsLeader(ctx) {
		slog.DebugContext(ctx, "not leader, skipping dispatch")
		return
	}

	if err := j.uc.DispatchDue(ctx); err != nil {
		slog.ErrorContext(ctx, "dispatch pass failed", "error", err)
	}
}

// IsAlive reports whether the loop is running and has ticked recently.
func (j *DispatchJob) IsAlive() bool {
	if !j.running.Load() {
		return false
	}
	return j.clock.Now().Sub(j.lastTick.Load()) < 3*j.interval
}
