package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically reclaims expired reservations.
type Sweeper struct {
	Service  *Service
	Interval time.Duration
	Log      *zap.Logger
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.Service.ReleaseExpired(ctx); err != nil && ctx.Err() == nil {
				log.Warn("reservation sweep failed", zap.Error(err))
			}
		}
	}
}
