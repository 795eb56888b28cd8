package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/broker"
	"github.com/mindbridge/peerchat-server/internal/pool"
)

// WaitingPromoter retries matching for parked seekers.
type WaitingPromoter interface {
	PromoteWaiting(ctx context.Context)
}

// Sweeper periodically evicts stale waiting entries and retries promotion.
// The periodic retry covers availability changes the core cannot observe,
// like opt-in toggles in the external store.
type Sweeper struct {
	waiting   pool.WaitingPool
	promoter  WaitingPromoter
	publisher broker.Publisher
	ttl       time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewSweeper(
	waiting pool.WaitingPool,
	promoter WaitingPromoter,
	publisher broker.Publisher,
	ttl time.Duration,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		waiting:   waiting,
		promoter:  promoter,
		publisher: publisher,
		ttl:       ttl,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
	log.Info().Dur("interval", s.interval).Dur("ttl", s.ttl).Msg("waiting pool sweeper started")
}

func (s *Sweeper) Stop() {
	close(s.done)
	log.Info().Msg("waiting pool sweeper stopped")
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep runs one eviction + promotion pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	for _, entry := range s.waiting.EvictOlderThan(cutoff) {
		log.Info().
			Str("seekerId", entry.SeekerID).
			Str("category", entry.Category).
			Time("enqueuedAt", entry.EnqueuedAt).
			Msg("waiting entry expired")

		event := broker.NewEvent(broker.EventMatchFailed, broker.ReasonPayload{
			Reason: "no helper became available in time",
		})
		if err := s.publisher.Publish(ctx, entry.SeekerID, event); err != nil {
			log.Warn().Err(err).Str("seekerId", entry.SeekerID).Msg("expiry notify failed")
		}
	}

	s.promoter.PromoteWaiting(ctx)
}
