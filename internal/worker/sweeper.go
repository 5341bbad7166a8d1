package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kolstack/koltime-api/internal/service"
)

type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// SweepWorker runs the time-gate sweep on a fixed interval so expired
// bookings refund and matured escrows pay out without anyone calling
// the admin endpoint. The sweep itself is idempotent, so overlap with
// a manual run is harmless.
type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
}

func NewSweepWorker(sweeper Sweeper, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}

	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Run blocks until the context is cancelled.
func (w *SweepWorker) Run(ctx context.Context) {
	zap.L().Info("sweep worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sweep worker stopped")
			return
		case <-ticker.C:
			result, err := w.sweeper.Sweep(ctx)
			if err != nil {
				zap.L().Error("sweep run failed", zap.Error(err))
				continue
			}

			if result.Expired > 0 || result.Released > 0 || result.Recovered > 0 || result.Failed > 0 {
				zap.L().Info("sweep run finished",
					zap.Int("examined", result.Examined),
					zap.Int("expired", result.Expired),
					zap.Int("released", result.Released),
					zap.Int("recovered", result.Recovered),
					zap.Int("skipped", result.Skipped),
					zap.Int("failed", result.Failed),
				)
			}
		}
	}
}
