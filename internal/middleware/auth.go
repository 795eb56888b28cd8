package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/httputil"
	"github.com/mindbridge/peerchat-server/internal/model"
	"github.com/mindbridge/peerchat-server/internal/repository"
	"github.com/mindbridge/peerchat-server/internal/util"
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.UserProfile {
	if user, ok := ctx.Value(UserContextKey).(*model.UserProfile); ok {
		return user
	}
	return nil
}

// AuthMiddleware resolves the opaque bearer token minted by the external
// identity service to a user profile. Token issuance itself is out of scope.
type AuthMiddleware struct {
	directory repository.DirectoryRepository
}

func NewAuthMiddleware(directory repository.DirectoryRepository) *AuthMiddleware {
	return &AuthMiddleware{directory: directory}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		user, err := m.directory.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if user == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
