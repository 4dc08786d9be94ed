package brokersim

import (
	"sync"
	"time"

	"brokergate/internal/errors"
)

// issuedCode is the server-side state behind one authorization code:
// everything the token endpoint must re-verify before minting.
type issuedCode struct {
	ClientID      string
	RedirectURI   string
	HolderID      string
	Scope         string
	CodeChallenge string
	ExpiresAt     time.Time
}

// codeStore holds pending authorization codes. A code is consumed by the
// first redemption whether or not the PKCE check then passes, so a
// stolen-then-replayed code is dead either way.
type codeStore struct {
	mu    sync.Mutex
	codes map[string]*issuedCode
}

func newCodeStore() *codeStore {
	return &codeStore{codes: make(map[string]*issuedCode)}
}

func (c *codeStore) Put(code string, issued *issuedCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[code] = issued
}

// Consume removes and returns the state behind a code. A second call for
// the same code reports ErrNotFound.
func (c *codeStore) Consume(code string, now time.Time) (*issuedCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	issued, exists := c.codes[code]
	if !exists {
		return nil, errors.ErrNotFound
	}
	delete(c.codes, code)

	if now.After(issued.ExpiresAt) {
		return nil, errors.ErrNotFound
	}
	return issued, nil
}
