package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindbridge/peerchat-server/internal/middleware"
	"github.com/mindbridge/peerchat-server/internal/model"
)

type fakeSessions struct {
	sessions map[string]*model.Session
}

func (f *fakeSessions) Claim(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (f *fakeSessions) FindByKey(ctx context.Context, sessionKey string) (*model.Session, error) {
	return f.sessions[sessionKey], nil
}

func (f *fakeSessions) End(ctx context.Context, sessionKey string) error { return nil }

func (f *fakeSessions) IsParticipantBusy(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func (f *fakeSessions) ActiveParticipantIDs(ctx context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

type fakeTranscripts struct {
	entries map[string][]model.TranscriptEntry
}

func (f *fakeTranscripts) Append(ctx context.Context, params model.AppendTranscriptParams) (*model.TranscriptEntry, error) {
	return nil, nil
}

func (f *fakeTranscripts) ListBySessionKey(ctx context.Context, sessionKey string) ([]model.TranscriptEntry, error) {
	return f.entries[sessionKey], nil
}

func testRouter(sessions *fakeSessions, transcripts *fakeTranscripts) chi.Router {
	r := chi.NewRouter()
	r.Mount("/sessions", NewSessionHandler(sessions, transcripts).Routes())
	return r
}

func doRequest(router http.Handler, user *model.UserProfile, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != nil {
		ctx := context.WithValue(req.Context(), middleware.UserContextKey, user)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetSession(t *testing.T) {
	session := &model.Session{
		SessionKey: "k1",
		SeekerID:   "s1",
		HelperID:   "h1",
		Status:     model.SessionStatusActive,
		CreatedAt:  time.Now(),
	}
	router := testRouter(
		&fakeSessions{sessions: map[string]*model.Session{"k1": session}},
		&fakeTranscripts{},
	)

	t.Run("participant sees the session", func(t *testing.T) {
		rec := doRequest(router, &model.UserProfile{ID: "s1"}, "/sessions/k1")

		require.Equal(t, http.StatusOK, rec.Code)
		var got model.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "k1", got.SessionKey)
		assert.Equal(t, "h1", got.HelperID)
	})

	t.Run("non-participant gets not found", func(t *testing.T) {
		rec := doRequest(router, &model.UserProfile{ID: "intruder"}, "/sessions/k1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown key gets the same not found", func(t *testing.T) {
		rec := doRequest(router, &model.UserProfile{ID: "s1"}, "/sessions/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		rec := doRequest(router, nil, "/sessions/k1")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetHistory(t *testing.T) {
	session := &model.Session{
		SessionKey: "k1",
		SeekerID:   "s1",
		HelperID:   "h1",
		Status:     model.SessionStatusEnded,
	}
	message := "hello"
	transcripts := &fakeTranscripts{entries: map[string][]model.TranscriptEntry{
		"k1": {
			{UserID: "s1", SessionType: model.SessionTypeChat, SessionKey: "k1", UserMessage: &message},
		},
	}}
	router := testRouter(
		&fakeSessions{sessions: map[string]*model.Session{"k1": session}},
		transcripts,
	)

	t.Run("participant can read the transcript after the session ended", func(t *testing.T) {
		rec := doRequest(router, &model.UserProfile{ID: "h1"}, "/sessions/k1/history")

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			History []model.TranscriptEntry `json:"history"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.History, 1)
		require.NotNil(t, body.History[0].UserMessage)
		assert.Equal(t, "hello", *body.History[0].UserMessage)
	})

	t.Run("empty transcript comes back as an empty list", func(t *testing.T) {
		emptyRouter := testRouter(
			&fakeSessions{sessions: map[string]*model.Session{"k1": session}},
			&fakeTranscripts{},
		)
		rec := doRequest(emptyRouter, &model.UserProfile{ID: "s1"}, "/sessions/k1/history")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"history":[]}`, rec.Body.String())
	})

	t.Run("non-participant gets not found", func(t *testing.T) {
		rec := doRequest(router, &model.UserProfile{ID: "intruder"}, "/sessions/k1/history")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
