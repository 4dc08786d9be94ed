package attemptrepo

import "time"

// Attempt is the transient state of one authorization flow: the CSRF state
// and the PKCE verifier issued at /authorize, held until the matching
// callback consumes them. Never persisted beyond a single flow.
type Attempt struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(sessionKey string, attempt *Attempt) error
	Get(sessionKey string) (*Attempt, error)
	Delete(sessionKey string) error
}
