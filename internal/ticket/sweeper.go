package ticket

import (
	"context"
	"log/slog"
	"time"

	"cas/internal/platform/metrics"
)

// Sweeper periodically deletes expired tickets. Redemption never depends on
// it; expiry is always checked when a ticket is consumed.
type Sweeper struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// NewSweeper builds a Sweeper. m may be nil.
func NewSweeper(store Store, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, metrics: m, logger: logger, clock: time.Now}
}

// Run sweeps every interval until ctx is done. It returns nil on cancellation.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// counter is implemented by stores that hold tickets in process.
type counter interface {
	Len() int
}

// SweepOnce deletes tickets expired at the current time and returns how many.
// Stores that can count their tickets also report the remaining total.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.store.DeleteExpired(ctx, s.clock())
	if err != nil {
		s.logger.WarnContext(ctx, "ticket sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.metrics.AddSwept(n)
		s.logger.DebugContext(ctx, "expired tickets removed", "count", n)
	}
	if c, ok := s.store.(counter); ok {
		s.metrics.SetStored(c.Len())
	}
	return n
}
