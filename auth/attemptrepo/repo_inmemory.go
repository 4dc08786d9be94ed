package attemptrepo

import (
	"sync"
	"time"

	"brokergate/internal/errors"
)

const cleanupInterval = 5 * time.Minute

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Attempts older than the TTL behave as missing on Get, and a
// background sweep reclaims them so abandoned flows cannot accumulate.
// Correctness does not depend on the sweep.
type InMemoryRepo struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt

	ttl         time.Duration
	nowTime     func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewInMemoryRepo creates a new in-memory attempt repository. A ttl of
// zero disables expiry. Call Stop to end the background sweep.
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	r := &InMemoryRepo{
		attempts:    make(map[string]*Attempt),
		ttl:         ttl,
		nowTime:     time.Now,
		stopCleanup: make(chan struct{}),
	}

	if ttl > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Upsert stores or replaces the pending attempt for a session key
func (r *InMemoryRepo) Upsert(sessionKey string, attempt *Attempt) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}
	if attempt == nil {
		return errors.New("attempt cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	r.attempts[sessionKey] = &Attempt{
		State:        attempt.State,
		CodeVerifier: attempt.CodeVerifier,
		CreatedAt:    attempt.CreatedAt,
	}

	return nil
}

// Get retrieves the pending attempt for a session key. Expired attempts
// behave as missing.
func (r *InMemoryRepo) Get(sessionKey string) (*Attempt, error) {
	if sessionKey == "" {
		return nil, errors.New("sessionKey cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	attempt, exists := r.attempts[sessionKey]
	if !exists {
		return nil, errors.ErrNoPendingAttempt
	}
	if r.expired(attempt) {
		return nil, errors.ErrNoPendingAttempt
	}

	// Return a copy to prevent external modifications
	return &Attempt{
		State:        attempt.State,
		CodeVerifier: attempt.CodeVerifier,
		CreatedAt:    attempt.CreatedAt,
	}, nil
}

// Delete removes the pending attempt for a session key. Deleting a key
// with no attempt is not an error.
func (r *InMemoryRepo) Delete(sessionKey string) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, sessionKey)
	return nil
}

// Stop ends the background cleanup goroutine
func (r *InMemoryRepo) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCleanup)
	})
}

func (r *InMemoryRepo) expired(attempt *Attempt) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.nowTime().Sub(attempt.CreatedAt) > r.ttl
}

func (r *InMemoryRepo) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *InMemoryRepo) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionKey, attempt := range r.attempts {
		if r.expired(attempt) {
			delete(r.attempts, sessionKey)
		}
	}
}
