package tokenfakerepo

import (
	"context"
	"sync"

	"brokergate/internal/errors"
	"brokergate/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is a map-backed token.Repo for tests. Each operation can be
// forced to fail, and writes are counted so tests can assert how often the
// store was touched.
type FakeTokenRepo struct {
	records map[string]*token.Record
	lock    sync.RWMutex

	HasErr    error
	GetErr    error
	SetErr    error
	DeleteErr error

	SetCalls    int
	DeleteCalls int
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		records: make(map[string]*token.Record),
	}
}

func (tr *FakeTokenRepo) Has(_ context.Context, sessionKey string) (bool, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	if tr.HasErr != nil {
		return false, tr.HasErr
	}
	_, ok := tr.records[sessionKey]
	return ok, nil
}

func (tr *FakeTokenRepo) Get(_ context.Context, sessionKey string) (*token.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	if tr.GetErr != nil {
		return nil, tr.GetErr
	}
	record, ok := tr.records[sessionKey]
	if !ok {
		return nil, errors.ErrNoStoredToken
	}
	copied := *record
	return &copied, nil
}

func (tr *FakeTokenRepo) Set(_ context.Context, sessionKey string, record *token.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.SetCalls++
	if tr.SetErr != nil {
		return tr.SetErr
	}
	copied := *record
	tr.records[sessionKey] = &copied
	return nil
}

func (tr *FakeTokenRepo) Delete(_ context.Context, sessionKey string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.DeleteCalls++
	if tr.DeleteErr != nil {
		return tr.DeleteErr
	}
	delete(tr.records, sessionKey)
	return nil
}

// Stored returns the record currently held for a session key without the
// copy-on-read of Get, or nil when absent.
func (tr *FakeTokenRepo) Stored(sessionKey string) *token.Record {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return tr.records[sessionKey]
}
