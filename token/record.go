package token

import "time"

// Record holds the brokerage credentials for one authenticated session.
// The access token is short-lived; the refresh token is used to mint
// replacements when it goes stale.
type Record struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// NewRecord derives the stored expiry from the provider-declared lifetime,
// pulled forward by the safety buffer so a record considered live here is
// still accepted by the provider at call time.
func NewRecord(accessToken, refreshToken string, issuedAt time.Time, expiresIn int64, buffer time.Duration) *Record {
	return &Record{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(expiresIn)*time.Second - buffer),
	}
}

// Expired reports whether the access token must no longer be presented
// downstream. The refresh token inside the record stays usable either way.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
