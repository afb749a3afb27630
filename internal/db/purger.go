package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AttemptPurger removes throttle records that no longer affect any decision.
type AttemptPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartAttemptPurger deletes stale login attempts every interval until ctx is done.
func StartAttemptPurger(
	ctx context.Context,
	repo AttemptPurger,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := repo.PurgeBefore(ctx, time.Now().Add(-retention))
				if err != nil {
					log.Error("failed to purge login attempts", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("purged login attempts", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
