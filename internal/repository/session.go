package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mindbridge/peerchat-server/internal/database"
	"github.com/mindbridge/peerchat-server/internal/model"
)

// ErrParticipantBusy is returned by Claim when a concurrent request already
// bound one of the participants to an active session. The caller retries
// against the next candidate.
var ErrParticipantBusy = errors.New("participant already in an active session")

// SessionRepository is the session ledger: the single source of truth for who
// is currently occupied. Sessions are never deleted, only transitioned.
type SessionRepository interface {
	// Claim atomically creates the session and reserves both participants.
	// Exclusivity is enforced by the session_participants primary key: a
	// racing duplicate claim fails with ErrParticipantBusy.
	Claim(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	FindByKey(ctx context.Context, sessionKey string) (*model.Session, error)
	// End marks the session ended and releases both participants. Ending an
	// already-ended session is a no-op.
	End(ctx context.Context, sessionKey string) error
	IsParticipantBusy(ctx context.Context, userID string) (bool, error)
	// ActiveParticipantIDs returns every user currently bound to an active
	// session, as seeker or helper.
	ActiveParticipantIDs(ctx context.Context) (map[string]struct{}, error)
}

type sessionRepo struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Claim(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &session, `
			INSERT INTO chat_sessions (session_key, seeker_id, helper_id, status, is_expert_fallback)
			VALUES ($1, $2, $3, 'active', $4)
			RETURNING *
		`, params.SessionKey, params.SeekerID, params.HelperID, params.IsExpertFallback); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_participants (user_id, session_key)
			VALUES ($1, $3), ($2, $3)
		`, params.SeekerID, params.HelperID, params.SessionKey); err != nil {
			if IsUniqueViolation(err) {
				return ErrParticipantBusy
			}
			return fmt.Errorf("reserve participants: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindByKey(ctx context.Context, sessionKey string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM chat_sessions WHERE session_key = $1
	`, sessionKey)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) End(ctx context.Context, sessionKey string) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE chat_sessions SET
				status = 'ended',
				ended_at = NOW()
			WHERE session_key = $1 AND status = 'active'
		`, sessionKey); err != nil {
			return fmt.Errorf("end session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM session_participants WHERE session_key = $1
		`, sessionKey); err != nil {
			return fmt.Errorf("release participants: %w", err)
		}

		return nil
	})
}

func (r *sessionRepo) IsParticipantBusy(ctx context.Context, userID string) (bool, error) {
	var busy bool
	err := r.db.GetContext(ctx, &busy, `
		SELECT EXISTS (SELECT 1 FROM session_participants WHERE user_id = $1)
	`, userID)
	if err != nil {
		return false, err
	}
	return busy, nil
}

func (r *sessionRepo) ActiveParticipantIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM session_participants
	`); err != nil {
		return nil, err
	}

	active := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		active[id] = struct{}{}
	}
	return active, nil
}
