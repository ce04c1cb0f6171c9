package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/aquamonitor/internal/observability/metrics"
)

// StaleCounter counts aquariums with no measurement since the cutoff
type StaleCounter interface {
	CountStale(ctx context.Context, cutoff time.Time) (int, error)
}

// StaleMonitor periodically counts aquariums that have gone without a
// measurement for longer than the threshold and exports the result as a
// gauge.
type StaleMonitor struct {
	counter   StaleCounter
	logger    *slog.Logger
	interval  time.Duration
	threshold time.Duration
}

// NewStaleMonitor creates a new stale monitor
func NewStaleMonitor(counter StaleCounter, logger *slog.Logger, interval, threshold time.Duration) *StaleMonitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &StaleMonitor{
		counter:   counter,
		logger:    logger,
		interval:  interval,
		threshold: threshold,
	}
}

// Start begins the monitor loop. It runs one check immediately and then on
// every tick until the context is cancelled.
func (w *StaleMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stale monitor started",
		slog.Duration("interval", w.interval),
		slog.Duration("threshold", w.threshold),
	)

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stale monitor stopped")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *StaleMonitor) check(ctx context.Context) {
	cutoff := time.Now().Add(-w.threshold)

	count, err := w.counter.CountStale(ctx, cutoff)
	if err != nil {
		w.logger.Error("stale check failed", slog.String("error", err.Error()))
		return
	}

	metrics.SetStaleAquariums(count)
	if count > 0 {
		w.logger.Warn("aquariums without recent measurements",
			slog.Int("count", count),
			slog.Time("cutoff", cutoff),
		)
	}
}
