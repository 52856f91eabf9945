package checkout

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/types"
)

// Janitor periodically removes expired idempotency records. Checkout
// already ignores expired keys, so the janitor only bounds table growth.
type Janitor struct {
	store    *database.Store
	interval time.Duration // Time between purge runs
	now      func() time.Time
}

func NewJanitor(store *database.Store, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the purge loop until ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	logger := log.With().Str("component", "idempotency_janitor").Logger()
	logger.Info().Dur("interval", j.interval).Msg("starting idempotency janitor")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down idempotency janitor")
			return
		case <-ticker.C:
			purged, err := j.PurgeExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("failed to purge expired idempotency records")
				continue
			}
			if purged > 0 {
				logger.Info().Int64("purged", purged).Msg("purged expired idempotency records")
			}
		}
	}
}

// PurgeExpired deletes every record whose expiry has passed
func (j *Janitor) PurgeExpired(ctx context.Context) (int64, error) {
	res := j.store.DB().WithContext(ctx).
		Where("expires_at <= ?", j.now().UTC()).
		Delete(&types.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
