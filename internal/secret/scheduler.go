package secret

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler rotates the credential on a fixed interval.
type Scheduler struct {
	rotator  *Rotator
	interval time.Duration
	log      *zap.Logger
}

func NewScheduler(rotator *Rotator, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{rotator: rotator, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. A tick that lands while a rotation is
// still running (e.g. a manual refresh) is skipped. Failed rotations are
// logged by the rotator and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info("rotation scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("rotation scheduler stopped")
			return
		case <-ticker.C:
			if _, ran, _ := s.rotator.TryRotate(ctx); !ran {
				s.log.Debug("rotation tick coalesced")
			}
		}
	}
}
