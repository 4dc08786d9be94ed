package server

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"brokergate/internal/errors"
	"brokergate/internal/signing"
)

// SessionManager issues and resolves the browser session cookie. The
// cookie value is an HS256-signed JWT whose subject is the session key;
// handlers pass the bare key into the core, which never sees cookies.
// The key is an anonymous handle for the stored token record, not a
// credential for the brokerage.
type SessionManager struct {
	cookieName string
	ttl        time.Duration
	signer     signing.Signer
	nowTime    func() time.Time
}

// SessionManagerOption defines a function type to modify the SessionManager instance.
type SessionManagerOption func(*SessionManager)

// WithSessionNowTime sets the now time function (primarily for testing)
func WithSessionNowTime(nowFunc func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		m.nowTime = nowFunc
	}
}

// NewSessionManager creates a manager for the named cookie. An empty
// secret generates a random per-process one, which invalidates all
// sessions on restart; multi-process deployments must configure a shared
// secret.
func NewSessionManager(cookieName, secret string, ttl time.Duration, options ...SessionManagerOption) (*SessionManager, error) {
	if cookieName == "" {
		return nil, errors.New("[NewSessionManager] cookie name is required")
	}
	if ttl <= 0 {
		return nil, errors.New("[NewSessionManager] ttl must be positive")
	}

	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrapf(errors.ErrEntropyUnavailable, "generating session secret failed with %v", err)
		}
	}

	m := &SessionManager{
		cookieName: cookieName,
		ttl:        ttl,
		signer:     signing.NewHMACSigner(key),
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Issue mints a fresh session key, sets the signed cookie on the
// response, and returns the key.
func (m *SessionManager) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	sessionKey := uuid.New().String()
	now := m.nowTime()

	signed, err := m.signer.Sign(jwt.MapClaims{
		"sub": sessionKey,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	})
	if err != nil {
		return "", errors.Wrapf(err, "[SessionManager Issue] signing session failed")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})

	return sessionKey, nil
}

// Resolve extracts and verifies the session key from the request cookie.
// Fails with ErrSessionNotFound when no cookie is present and
// ErrInvalidSession when the cookie fails verification or has expired.
func (m *SessionManager) Resolve(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", errors.ErrSessionNotFound
	}

	parsed, err := jwt.Parse(cookie.Value, m.signer.Keyfunc, jwt.WithTimeFunc(m.nowTime))
	if err != nil || !parsed.Valid {
		return "", errors.Wrapf(errors.ErrInvalidSession, "session cookie rejected: %v", err)
	}

	sessionKey, err := parsed.Claims.GetSubject()
	if err != nil || sessionKey == "" {
		return "", errors.Wrapf(errors.ErrInvalidSession, "session cookie has no subject")
	}

	return sessionKey, nil
}

// ensureSessionKey resolves the session, issuing a fresh one when the
// request carries none or an invalid one. Only the authorize endpoint
// uses this; everything else requires an existing session.
func (s *Server) ensureSessionKey(w http.ResponseWriter, r *http.Request) (string, error) {
	sessionKey, err := s.sessions.Resolve(r)
	if err == nil {
		return sessionKey, nil
	}
	return s.sessions.Issue(w, r)
}
