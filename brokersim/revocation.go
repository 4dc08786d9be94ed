package brokersim

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// revocationList tracks the jti claims of revoked access tokens until
// they would have expired anyway.
type revocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{revoked: make(map[string]time.Time)}
}

func (l *revocationList) Add(jti string, exp time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = exp
}

func (l *revocationList) IsRevoked(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.revoked[jti]
	return exists
}

// Cleanup drops entries whose token has expired on its own.
func (l *revocationList) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for jti, exp := range l.revoked {
		if now.After(exp) {
			delete(l.revoked, jti)
		}
	}
}

// RevokeHandler implements RFC 7009: a refresh token dies in the store,
// an access token's jti joins the revocation list, and an unknown token
// still gets a 200 so callers cannot probe for live tokens.
func (s *Simulator) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
			return
		}
		token := r.PostForm.Get("token")
		if token == "" {
			writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
			return
		}

		if s.refresh.Revoke(token) {
			log.Info().Msg("Refresh token revoked")
			w.WriteHeader(http.StatusOK)
			return
		}

		// Not a refresh token; if it verifies as one of our access
		// tokens, retire its jti.
		parsed, err := jwt.Parse(token, s.signer.Keyfunc, jwt.WithTimeFunc(s.nowTime))
		if err == nil && parsed.Valid {
			if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
				jti, _ := claims["jti"].(string)
				exp, expErr := claims.GetExpirationTime()
				if jti != "" && expErr == nil && exp != nil {
					s.revoked.Add(jti, exp.Time)
					s.revoked.Cleanup(s.nowTime())
					log.Info().Msg("Access token revoked")
				}
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
