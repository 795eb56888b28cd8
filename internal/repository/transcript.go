package repository

import (
	"context"

	"github.com/mindbridge/peerchat-server/internal/database"
	"github.com/mindbridge/peerchat-server/internal/model"
)

// TranscriptRepository is the boundary with the transcript store. Writes are
// at-least-once; duplicates are a lesser harm than lost rows.
type TranscriptRepository interface {
	Append(ctx context.Context, params model.AppendTranscriptParams) (*model.TranscriptEntry, error)
	ListBySessionKey(ctx context.Context, sessionKey string) ([]model.TranscriptEntry, error)
}

type transcriptRepo struct {
	db *database.DB
}

func NewTranscriptRepository(db *database.DB) TranscriptRepository {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Append(ctx context.Context, params model.AppendTranscriptParams) (*model.TranscriptEntry, error) {
	var entry model.TranscriptEntry
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO conversation_history (user_id, session_type, session_key, user_message, system_response)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.UserID, params.SessionType, params.SessionKey, params.UserMessage, params.SystemResponse)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *transcriptRepo) ListBySessionKey(ctx context.Context, sessionKey string) ([]model.TranscriptEntry, error) {
	var entries []model.TranscriptEntry
	if err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM conversation_history
		WHERE session_key = $1
		ORDER BY created_at ASC, id ASC
	`, sessionKey); err != nil {
		return nil, err
	}
	return entries, nil
}
