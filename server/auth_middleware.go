package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID stores the session the access token was issued for
	ContextKeySessionID ContextKey = "session_id"
)

// RequireAuth is middleware that validates a Bearer access token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.writeError(w, apperrors.ErrMissingToken)
				return
			}

			scheme, bearer, ok := strings.Cut(authHeader, " ")
			bearer = strings.TrimSpace(bearer)
			if !ok || !strings.EqualFold(scheme, "bearer") || bearer == "" {
				s.writeError(w, apperrors.ErrMissingToken)
				return
			}

			claims, err := s.tokens.VerifyAccess(bearer)
			if err != nil {
				s.writeError(w, apperrors.ErrInvalidAccessToken)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeySessionID, claims.SessionID)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserIDFromContext returns the user set by RequireAuth
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}

// SessionIDFromContext returns the session of the access token accepted by RequireAuth
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(ContextKeySessionID).(string)
	return sessionID, ok && sessionID != ""
}
