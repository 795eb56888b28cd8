package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/broker"
	"github.com/mindbridge/peerchat-server/internal/model"
	"github.com/mindbridge/peerchat-server/internal/pool"
	"github.com/mindbridge/peerchat-server/internal/repository"
)

type OutcomeKind string

const (
	OutcomeMatched OutcomeKind = "matched"
	OutcomeWaiting OutcomeKind = "waiting"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the immediate resolution of a match request. A request never
// blocks waiting for a human: it is matched, parked in the pool, or failed.
type Outcome struct {
	Kind    OutcomeKind
	Session *model.Session
	Reason  string
}

// Engine selects a helper for a seeker in strict priority order: exact-tag
// peer, then professional fallback, then a deferred wait when only a
// cross-tag peer exists. All matching decisions serialize through one mutex;
// the participants table's primary key backstops claims racing in from other
// instances.
type Engine struct {
	sessions  repository.SessionRepository
	directory repository.DirectoryRepository
	waiting   pool.WaitingPool
	publisher broker.Publisher
	chooser   Chooser

	// anonymousPeersAllowed keeps the deferred tier open for anonymous
	// seekers. Off by default: anonymous means professional-only.
	anonymousPeersAllowed bool

	mu sync.Mutex
}

func NewEngine(
	sessions repository.SessionRepository,
	directory repository.DirectoryRepository,
	waiting pool.WaitingPool,
	publisher broker.Publisher,
	chooser Chooser,
	anonymousPeersAllowed bool,
) *Engine {
	return &Engine{
		sessions:              sessions,
		directory:             directory,
		waiting:               waiting,
		publisher:             publisher,
		chooser:               chooser,
		anonymousPeersAllowed: anonymousPeersAllowed,
	}
}

// RequestMatch resolves a seeker's request to matched, waiting, or failed.
// The caller delivers the outcome to the requesting connection; the committed
// helper is notified through the event channel here.
func (e *Engine) RequestMatch(ctx context.Context, seekerID, category string, anonymous bool) Outcome {
	if category == "" {
		return Outcome{Kind: OutcomeFailed, Reason: "category is required"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.waiting.Contains(seekerID) {
		log.Debug().Str("seekerId", seekerID).Msg("seeker already waiting, re-acknowledging")
		return Outcome{Kind: OutcomeWaiting}
	}

	busy, err := e.sessions.IsParticipantBusy(ctx, seekerID)
	if err != nil {
		log.Error().Err(err).Str("seekerId", seekerID).Msg("ledger lookup failed")
		return Outcome{Kind: OutcomeFailed, Reason: "matching temporarily unavailable"}
	}
	if busy {
		return Outcome{Kind: OutcomeFailed, Reason: "already in an active conversation"}
	}

	return e.matchLocked(ctx, seekerID, category, anonymous, true)
}

// matchLocked walks the priority tiers. Callers hold e.mu.
func (e *Engine) matchLocked(ctx context.Context, seekerID, category string, anonymous, allowDeferred bool) Outcome {
	tag := model.RecoveredTagPrefix + category

	active, err := e.sessions.ActiveParticipantIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ledger snapshot failed")
		return Outcome{Kind: OutcomeFailed, Reason: "matching temporarily unavailable"}
	}

	// P1: peer who recovered from the requested category.
	if !anonymous {
		candidates, err := e.directory.ListCandidates(ctx, repository.CandidateFilter{
			RecoveredTag: tag,
		})
		if err != nil {
			return e.failClosed(err)
		}
		if session := e.claimFrom(ctx, seekerID, eligible(candidates, seekerID, active), false); session != nil {
			return Outcome{Kind: OutcomeMatched, Session: session}
		}
	}

	// P2: professional fallback.
	candidates, err := e.directory.ListCandidates(ctx, repository.CandidateFilter{
		Professional: true,
	})
	if err != nil {
		return e.failClosed(err)
	}
	if session := e.claimFrom(ctx, seekerID, eligible(candidates, seekerID, active), true); session != nil {
		return Outcome{Kind: OutcomeMatched, Session: session}
	}

	// P3: a cross-tag peer exists. Trade the imperfect immediate match for
	// the chance of a better one: park the seeker instead of binding.
	if allowDeferred && (!anonymous || e.anonymousPeersAllowed) {
		candidates, err := e.directory.ListCandidates(ctx, repository.CandidateFilter{
			AnyRecoveredTag:     true,
			ExcludeRecoveredTag: tag,
		})
		if err != nil {
			return e.failClosed(err)
		}
		if len(eligible(candidates, seekerID, active)) > 0 {
			e.waiting.Add(model.WaitingEntry{
				SeekerID:   seekerID,
				Category:   category,
				Anonymous:  anonymous,
				EnqueuedAt: time.Now(),
			})
			log.Info().Str("seekerId", seekerID).Str("category", category).Msg("seeker parked in waiting pool")
			return Outcome{Kind: OutcomeWaiting}
		}
	}

	return Outcome{Kind: OutcomeFailed, Reason: "no eligible helper available"}
}

// claimFrom picks uniformly from candidates and claims. A claim lost to a
// concurrent request drops that candidate and retries against the rest.
func (e *Engine) claimFrom(ctx context.Context, seekerID string, candidates []string, expertFallback bool) *model.Session {
	for len(candidates) > 0 {
		i := e.chooser.Pick(len(candidates))
		helperID := candidates[i]

		session, err := e.sessions.Claim(ctx, model.CreateSessionParams{
			SessionKey:       uuid.NewString(),
			SeekerID:         seekerID,
			HelperID:         helperID,
			IsExpertFallback: expertFallback,
		})
		if err == nil {
			log.Info().
				Str("sessionKey", session.SessionKey).
				Str("seekerId", seekerID).
				Str("helperId", helperID).
				Bool("expertFallback", expertFallback).
				Msg("session created")
			e.notify(ctx, helperID, broker.NewEvent(broker.EventMatchAssigned, broker.MatchPayload{Room: session.SessionKey}))
			return session
		}

		if errors.Is(err, repository.ErrParticipantBusy) {
			log.Debug().
				Str("seekerId", seekerID).
				Str("helperId", helperID).
				Msg("claim lost to concurrent request, retrying next candidate")
			candidates = append(candidates[:i], candidates[i+1:]...)
			continue
		}

		log.Error().Err(err).Str("seekerId", seekerID).Msg("session claim failed")
		return nil
	}
	return nil
}

// CancelMatch removes the seeker's waiting entry. Idempotent; cancelling
// without an entry is only a diagnostic signal.
func (e *Engine) CancelMatch(seekerID string) {
	if e.waiting.Remove(seekerID) {
		log.Info().Str("seekerId", seekerID).Msg("seeker cancelled waiting")
	} else {
		log.Debug().Str("seekerId", seekerID).Msg("cancel without waiting entry")
	}
}

// PromoteWaiting re-runs matching for waiting seekers in arrival order. It is
// called whenever helper availability can have changed, i.e. when a session
// ends. The deferred tier stays closed here so a promotion attempt either
// matches or keeps waiting, never re-enqueues.
func (e *Engine) PromoteWaiting(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range e.waiting.Entries() {
		busy, err := e.sessions.IsParticipantBusy(ctx, entry.SeekerID)
		if err != nil {
			log.Error().Err(err).Str("seekerId", entry.SeekerID).Msg("ledger lookup failed during promotion")
			return
		}
		if busy {
			// The waiting seeker got bound elsewhere, e.g. picked as a helper.
			e.waiting.Remove(entry.SeekerID)
			continue
		}

		outcome := e.matchLocked(ctx, entry.SeekerID, entry.Category, entry.Anonymous, false)
		if outcome.Kind != OutcomeMatched {
			continue
		}

		e.waiting.Remove(entry.SeekerID)
		log.Info().
			Str("seekerId", entry.SeekerID).
			Str("sessionKey", outcome.Session.SessionKey).
			Msg("waiting seeker promoted")
		e.notify(ctx, entry.SeekerID, broker.NewEvent(broker.EventMatchFound, broker.MatchPayload{Room: outcome.Session.SessionKey}))
	}
}

func (e *Engine) failClosed(err error) Outcome {
	log.Error().Err(err).Msg("eligibility store unavailable")
	return Outcome{Kind: OutcomeFailed, Reason: "matching temporarily unavailable"}
}

func (e *Engine) notify(ctx context.Context, userID string, event broker.Event) {
	if err := e.publisher.Publish(ctx, userID, event); err != nil {
		log.Warn().Err(err).Str("userId", userID).Str("type", event.Type).Msg("event publish failed")
	}
}

// eligible filters out the requester itself and anyone bound to an active
// session.
func eligible(candidates []string, seekerID string, active map[string]struct{}) []string {
	out := candidates[:0:0]
	for _, id := range candidates {
		if id == seekerID {
			continue
		}
		if _, busy := active[id]; busy {
			continue
		}
		out = append(out, id)
	}
	return out
}
