package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindbridge/peerchat-server/internal/model"
	"github.com/mindbridge/peerchat-server/internal/repository"
	"github.com/mindbridge/peerchat-server/internal/util"
)

type fakeDirectory struct {
	byTokenHash map[string]*model.UserProfile
	err         error
}

func (f *fakeDirectory) Lookup(ctx context.Context, userID string) (*model.UserProfile, error) {
	return nil, nil
}

func (f *fakeDirectory) FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTokenHash[tokenHash], nil
}

func (f *fakeDirectory) ListCandidates(ctx context.Context, filter repository.CandidateFilter) ([]string, error) {
	return nil, nil
}

func authedHandler(directory *fakeDirectory) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewAuthMiddleware(directory).Handler(next)
}

func TestAuthMiddleware(t *testing.T) {
	user := &model.UserProfile{ID: "u1", Role: model.RoleMember}
	token := "secret-token"

	t.Run("missing token", func(t *testing.T) {
		handler := authedHandler(&fakeDirectory{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		handler := authedHandler(&fakeDirectory{byTokenHash: map[string]*model.UserProfile{}})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("directory error", func(t *testing.T) {
		handler := authedHandler(&fakeDirectory{err: errors.New("db down")})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("bearer header resolves the user", func(t *testing.T) {
		directory := &fakeDirectory{byTokenHash: map[string]*model.UserProfile{
			util.HashToken(token): user,
		}}

		var seen *model.UserProfile
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetUser(r.Context())
		})
		handler := NewAuthMiddleware(directory).Handler(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotNil(t, seen)
		assert.Equal(t, "u1", seen.ID)
	})

	t.Run("query param works for websocket upgrades", func(t *testing.T) {
		directory := &fakeDirectory{byTokenHash: map[string]*model.UserProfile{
			util.HashToken(token): user,
		}}

		var seen *model.UserProfile
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetUser(r.Context())
		})
		handler := NewAuthMiddleware(directory).Handler(next)

		req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotNil(t, seen)
		assert.Equal(t, "u1", seen.ID)
	})
}

func TestGetUserWithoutAuth(t *testing.T) {
	assert.Nil(t, GetUser(context.Background()))
}
