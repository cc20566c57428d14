package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-partnergate/partnergate/internal/core"
	"github.com/go-partnergate/partnergate/internal/store"
)

// Sweeper periodically removes expired grants and tokens from the
// store. The purge itself runs as one store transaction; the mutex only
// guards against the sweeper overlapping with itself when a run takes
// longer than the interval. Ordinary request traffic proceeds
// concurrently.
type Sweeper struct {
	store        *store.Store
	interval     time.Duration
	refreshGrace time.Duration
	metrics      core.Recorder

	mu sync.Mutex
}

func New(
	s *store.Store,
	interval, refreshGrace time.Duration,
	recorder core.Recorder,
) *Sweeper {
	return &Sweeper{
		store:        s,
		interval:     interval,
		refreshGrace: refreshGrace,
		metrics:      recorder,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs a single purge pass. A pass already in flight makes this
// call a no-op.
func (s *Sweeper) Sweep() {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	start := time.Now()
	result, err := s.store.PurgeExpired(start, s.refreshGrace)
	if err != nil {
		log.Printf("[Sweeper] purge failed: %v", err)
		s.metrics.RecordDatabaseQueryError("purge_expired")
		return
	}

	s.metrics.RecordPurge(
		result.Grants,
		result.AccessTokens,
		result.RefreshTokens,
		time.Since(start),
	)
	if result.Grants+result.AccessTokens+result.RefreshTokens > 0 {
		log.Printf(
			"[Sweeper] purged %d grants, %d access tokens, %d refresh tokens in %s",
			result.Grants, result.AccessTokens, result.RefreshTokens, time.Since(start),
		)
	}
}
