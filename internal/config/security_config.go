package config

import "time"

type SecurityConfig interface {
	GetSessionSigningSecret() string
	GetSessionCookieName() string
	GetSessionTTL() time.Duration
	GetRefreshOnExpiry() bool
	GetRevokeOnLogout() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSigningSecret returns the HMAC secret for session cookies. An
// empty value makes the server generate a per-process secret at startup,
// which invalidates sessions on restart (acceptable for the volatile
// default deployment, wrong for anything multi-process).
func (Security) GetSessionSigningSecret() string {
	return GetEnv("SESSION_SIGNING_SECRET", "")
}

func (Security) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "bg_session")
}

func (Security) GetSessionTTL() time.Duration {
	hours := GetEnvInt("SESSION_TTL_HOURS", 12)
	return time.Duration(hours) * time.Hour
}

// GetRefreshOnExpiry selects the authorization gate policy: false reports
// a stale token to the caller, true refreshes transparently before failing.
func (Security) GetRefreshOnExpiry() bool {
	return GetEnv("AUTH_REFRESH_ON_EXPIRY", "false") == "true"
}

// GetRevokeOnLogout, when true and a revocation endpoint is configured,
// makes logout also revoke the refresh token with the provider
// (best effort, logout still succeeds on revocation failure).
func (Security) GetRevokeOnLogout() bool {
	return GetEnv("AUTH_REVOKE_ON_LOGOUT", "false") == "true"
}
