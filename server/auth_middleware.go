package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"brokergate/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionKey stores the resolved session key
	ContextKeySessionKey ContextKey = "session_key"
	// ContextKeyAccessToken stores the gated brokerage access token
	ContextKeyAccessToken ContextKey = "access_token"
)

// RequireAuthorized is middleware for the trading routes. It resolves
// the session cookie, runs the authorization gate, and injects the live
// access token into the request context. Requests without a session or
// with a stale token never reach the handler.
func (s *Server) RequireAuthorized() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionKey, err := s.sessions.Resolve(r)
			if err != nil {
				writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			accessToken, err := s.auth.Authorize(r.Context(), sessionKey)
			switch {
			case errors.Is(err, errors.ErrUnauthenticated):
				writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			case errors.Is(err, errors.ErrTokenExpired):
				writeJSONError(w, "Token expired", http.StatusUnauthorized)
				return
			case err != nil:
				log.Err(err).Str("sessionKey", sessionKey).Msg("Authorization gate failed")
				writeJSONError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySessionKey, sessionKey)
			ctx = context.WithValue(ctx, ContextKeyAccessToken, accessToken)
			next(w, r.WithContext(ctx))
		}
	}
}

// accessTokenFromContext returns the token RequireAuthorized injected.
func accessTokenFromContext(ctx context.Context) string {
	accessToken, _ := ctx.Value(ContextKeyAccessToken).(string)
	return accessToken
}

// sessionKeyFromContext returns the session key RequireAuthorized injected.
func sessionKeyFromContext(ctx context.Context) string {
	sessionKey, _ := ctx.Value(ContextKeySessionKey).(string)
	return sessionKey
}
