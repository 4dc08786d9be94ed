package token

import "context"

// Repo is the single owner of stored token records, keyed by session key.
// Writes replace any existing record so at most one exists per key. Get must
// return stale records unchanged, since a refresh needs the stored refresh
// token after the access token has expired.
type Repo interface {
	Has(ctx context.Context, sessionKey string) (bool, error)
	Get(ctx context.Context, sessionKey string) (*Record, error)
	Set(ctx context.Context, sessionKey string, record *Record) error
	Delete(ctx context.Context, sessionKey string) error
}
