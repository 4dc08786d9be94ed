package token

import (
	"context"
	"sync"

	"brokergate/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Records are lost on process restart, which the default
// deployment accepts: the front end simply re-runs authorization.
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRepo creates a new in-memory token record repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]*Record),
	}
}

// Has reports whether a record exists for the session key, stale or not
func (r *InMemoryRepo) Has(_ context.Context, sessionKey string) (bool, error) {
	if sessionKey == "" {
		return false, errors.New("sessionKey cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.records[sessionKey]
	return exists, nil
}

// Get retrieves the record for a session key
func (r *InMemoryRepo) Get(_ context.Context, sessionKey string) (*Record, error) {
	if sessionKey == "" {
		return nil, errors.New("sessionKey cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[sessionKey]
	if !exists {
		return nil, errors.ErrNoStoredToken
	}

	// Return a copy to prevent external modifications
	return &Record{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

// Set stores or replaces the record for a session key
func (r *InMemoryRepo) Set(_ context.Context, sessionKey string, record *Record) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}
	if record == nil {
		return errors.New("record cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	r.records[sessionKey] = &Record{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
	}

	return nil
}

// Delete removes the record for a session key. Deleting a key with no
// record is not an error.
func (r *InMemoryRepo) Delete(_ context.Context, sessionKey string) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, sessionKey)
	return nil
}
