package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/mindbridge/peerchat-server/internal/errors"
	"github.com/mindbridge/peerchat-server/internal/middleware"
	"github.com/mindbridge/peerchat-server/internal/model"
	"github.com/mindbridge/peerchat-server/internal/repository"
)

type SessionHandler struct {
	sessions    repository.SessionRepository
	transcripts repository.TranscriptRepository
}

func NewSessionHandler(sessions repository.SessionRepository, transcripts repository.TranscriptRepository) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		transcripts: transcripts,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{sessionKey}", h.GetSession)
	r.Get("/{sessionKey}/history", h.GetHistory)

	return r
}

// GET /v1/sessions/{sessionKey}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GET /v1/sessions/{sessionKey}/history
func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}

	entries, err := h.transcripts.ListBySessionKey(r.Context(), session.SessionKey)
	if err != nil {
		log.Error().Err(err).Str("sessionKey", session.SessionKey).Msg("failed to load history")
		writeError(w, apperrors.Internal("Failed to load history"))
		return
	}
	if entries == nil {
		entries = []model.TranscriptEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// authorizedSession resolves the key and checks the caller is a participant.
// Absent and foreign sessions get the same not-found answer.
func (h *SessionHandler) authorizedSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return nil, false
	}

	sessionKey := chi.URLParam(r, "sessionKey")
	if sessionKey == "" {
		writeError(w, apperrors.InvalidInput("sessionKey", "required"))
		return nil, false
	}

	session, err := h.sessions.FindByKey(r.Context(), sessionKey)
	if err != nil {
		log.Error().Err(err).Msg("session lookup failed")
		writeError(w, apperrors.Internal("Internal server error"))
		return nil, false
	}
	if session == nil || !session.IsParticipant(user.ID) {
		writeError(w, apperrors.NotFound("Session"))
		return nil, false
	}

	return session, true
}
