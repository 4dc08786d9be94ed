package token

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"brokergate/internal/errors"
)

var _ Repo = (*RedisRepo)(nil)

// RedisRepo stores token records in Redis, for deployments running more
// than one replica behind a load balancer.
//
// Records are kept for the session lifetime rather than the access token
// lifetime: a stale record still carries the refresh token needed to mint
// a replacement, so the TTL must outlive ExpiresAt.
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisRepo connects to Redis at addr and verifies the connection.
// A ttl of zero keeps records until they are deleted.
func NewRedisRepo(ctx context.Context, addr, password string, db int, keyPrefix string, ttl time.Duration) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[NewRedisRepo] connect to redis at %s", addr)
	}

	return NewRedisRepoWithClient(client, keyPrefix, ttl), nil
}

// NewRedisRepoWithClient wraps a pre-configured client. Useful for testing
// with miniredis or for sharing one client across repositories.
func NewRedisRepoWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisRepo {
	return &RedisRepo{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisRepo) key(sessionKey string) string {
	return r.keyPrefix + "token:" + sessionKey
}

// Has reports whether a record exists for the session key, stale or not
func (r *RedisRepo) Has(ctx context.Context, sessionKey string) (bool, error) {
	if sessionKey == "" {
		return false, errors.New("sessionKey cannot be empty")
	}

	n, err := r.client.Exists(ctx, r.key(sessionKey)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "[RedisRepo Has] %s", sessionKey)
	}
	return n > 0, nil
}

// Get retrieves the record for a session key
func (r *RedisRepo) Get(ctx context.Context, sessionKey string) (*Record, error) {
	if sessionKey == "" {
		return nil, errors.New("sessionKey cannot be empty")
	}

	data, err := r.client.Get(ctx, r.key(sessionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.ErrNoStoredToken
		}
		return nil, errors.Wrapf(err, "[RedisRepo Get] %s", sessionKey)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, "[RedisRepo Get] unmarshal record for %s", sessionKey)
	}
	return &record, nil
}

// Set stores or replaces the record for a session key
func (r *RedisRepo) Set(ctx context.Context, sessionKey string, record *Record) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}
	if record == nil {
		return errors.New("record cannot be nil")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "[RedisRepo Set] marshal record for %s", sessionKey)
	}

	if err := r.client.Set(ctx, r.key(sessionKey), data, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepo Set] %s", sessionKey)
	}
	return nil
}

// Delete removes the record for a session key. Deleting a key with no
// record is not an error.
func (r *RedisRepo) Delete(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}

	if err := r.client.Del(ctx, r.key(sessionKey)).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepo Delete] %s", sessionKey)
	}
	return nil
}

// Close releases the underlying Redis connection
func (r *RedisRepo) Close() error {
	return r.client.Close()
}
