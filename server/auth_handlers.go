package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"brokergate/internal/errors"
)

// authURLResponse is the payload the front end follows to the hosted
// authorization page.
type authURLResponse struct {
	AuthURL string `json:"authUrl"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type statusResponse struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// AuthorizeHandler begins an authorization attempt: it makes sure the
// browser holds a session cookie (issuing one when absent) and returns
// the authorization URL for the front end to navigate to.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionKey, err := s.ensureSessionKey(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to establish session")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authURL, err := s.auth.StartAuthorization(sessionKey)
		if err != nil {
			log.Err(err).Str("sessionKey", sessionKey).Msg("Failed to start authorization")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, authURLResponse{AuthURL: authURL})
	}
}

// CallbackHandler completes the flow when the brokerage redirects back.
// On success the browser is sent to the front end; every failure mode
// responds with a JSON error and requires restarting from /authorize.
// Provider error bodies are logged, never echoed to the browser.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionKey, err := s.sessions.Resolve(r)
		if err != nil {
			writeJSONError(w, "No pending authorization", http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		if errCode := query.Get("error"); errCode != "" {
			log.Warn().Str("sessionKey", sessionKey).Str("providerError", errCode).Msg("Authorization denied by provider")
			writeJSONError(w, errCode, http.StatusBadRequest)
			return
		}

		code := query.Get("code")
		state := query.Get("state")
		if code == "" || state == "" {
			writeJSONError(w, "Missing code or state", http.StatusBadRequest)
			return
		}

		_, err = s.auth.CompleteAuthorization(r.Context(), sessionKey, code, state)
		switch {
		case err == nil:
			http.Redirect(w, r, s.config.GetFrontendURL(), http.StatusFound)
		case errors.Is(err, errors.ErrNoPendingAttempt):
			writeJSONError(w, "No pending authorization", http.StatusBadRequest)
		case errors.Is(err, errors.ErrStateMismatch):
			log.Warn().Str("sessionKey", sessionKey).Msg("Callback state mismatch")
			writeJSONError(w, "State mismatch", http.StatusBadRequest)
		case errors.Is(err, errors.ErrExchangeFailed):
			logProviderFailure(err, sessionKey, "Token exchange failed")
			writeJSONError(w, "Token exchange failed", http.StatusInternalServerError)
		case errors.Is(err, errors.ErrNetwork):
			log.Err(err).Str("sessionKey", sessionKey).Msg("Token exchange unreachable")
			writeJSONError(w, "Brokerage unreachable", http.StatusBadGateway)
		default:
			log.Err(err).Str("sessionKey", sessionKey).Msg("Callback failed")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

// RefreshHandler forces a token refresh for the session. The token
// record itself never leaves the server; the front end only learns
// whether the session is still viable.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionKey, err := s.sessions.Resolve(r)
		if err != nil {
			writeJSONError(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		_, err = s.auth.Refresh(r.Context(), sessionKey)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, successResponse{Success: true})
		case errors.Is(err, errors.ErrNoStoredToken):
			writeJSONError(w, "Not authenticated", http.StatusUnauthorized)
		case errors.Is(err, errors.ErrRefreshFailed):
			logProviderFailure(err, sessionKey, "Token refresh failed")
			writeJSONError(w, "Refresh failed", providerFailureStatus(err))
		case errors.Is(err, errors.ErrNetwork):
			log.Err(err).Str("sessionKey", sessionKey).Msg("Token refresh unreachable")
			writeJSONError(w, "Brokerage unreachable", http.StatusBadGateway)
		default:
			log.Err(err).Str("sessionKey", sessionKey).Msg("Token refresh failed")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

// LogoutHandler drops the stored token record. Logging out without a
// session, or twice in a row, succeeds all the same.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionKey, err := s.sessions.Resolve(r)
		if err != nil {
			writeJSON(w, http.StatusOK, successResponse{Success: true})
			return
		}

		if err := s.auth.Logout(r.Context(), sessionKey); err != nil {
			log.Err(err).Str("sessionKey", sessionKey).Msg("Logout failed")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// StatusHandler reports whether the session holds a live token, so the
// SPA can decide between showing data and prompting for authorization.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionKey, err := s.sessions.Resolve(r)
		if err != nil {
			writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
			return
		}

		status, err := s.auth.Status(r.Context(), sessionKey)
		if err != nil {
			log.Err(err).Str("sessionKey", sessionKey).Msg("Status lookup failed")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := statusResponse{Authenticated: status.Authenticated}
		if !status.ExpiresAt.IsZero() {
			resp.ExpiresAt = &status.ExpiresAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// providerFailureStatus maps a provider rejection onto the response
// status: the upstream status when one was captured, 500 otherwise.
func providerFailureStatus(err error) int {
	var providerErr *errors.ProviderError
	if errors.As(err, &providerErr) && providerErr.StatusCode >= 400 && providerErr.StatusCode < 600 {
		return providerErr.StatusCode
	}
	return http.StatusInternalServerError
}

func logProviderFailure(err error, sessionKey, msg string) {
	event := log.Error().Str("sessionKey", sessionKey)
	var providerErr *errors.ProviderError
	if errors.As(err, &providerErr) {
		event = event.Int("providerStatus", providerErr.StatusCode).Str("providerBody", providerErr.Body)
	} else {
		event = event.Err(err)
	}
	event.Msg(msg)
}

// writeJSON writes a JSON response. Everything this API serves is
// per-session and must never be cached.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeJSONError writes the {"error": ...} payload the front end expects
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
