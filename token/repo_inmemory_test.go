package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brokergate/internal/errors"
	"brokergate/token"
)

func testRecord(expiresAt time.Time) *token.Record {
	return &token.Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt,
	}
}

func TestInMemoryRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()
	expiresAt := time.Now().Add(time.Hour)

	require.NoError(t, repo.Set(ctx, "session-1", testRecord(expiresAt)))

	got, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, "access-1", got.AccessToken)
	require.Equal(t, "refresh-1", got.RefreshToken)
	require.True(t, got.ExpiresAt.Equal(expiresAt))
}

func TestInMemoryRepo_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()

	require.NoError(t, repo.Set(ctx, "session-1", testRecord(time.Now().Add(time.Hour))))

	first, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	first.AccessToken = "mutated"

	second, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, "access-1", second.AccessToken)
}

func TestInMemoryRepo_SetReplacesExistingRecord(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()

	require.NoError(t, repo.Set(ctx, "session-1", testRecord(time.Now().Add(time.Hour))))
	require.NoError(t, repo.Set(ctx, "session-1", &token.Record{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().Add(2 * time.Hour),
	}))

	got, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
	require.Equal(t, "refresh-2", got.RefreshToken)
}

func TestInMemoryRepo_GetMissingKey(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()

	_, err := repo.Get(ctx, "session-1")
	require.ErrorIs(t, err, errors.ErrNoStoredToken)
}

func TestInMemoryRepo_KeepsStaleRecords(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()
	stale := testRecord(time.Now().Add(-time.Hour))

	require.NoError(t, repo.Set(ctx, "session-1", stale))

	got, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	require.True(t, got.Expired(time.Now()))
	require.Equal(t, "refresh-1", got.RefreshToken)
}

func TestInMemoryRepo_Has(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()

	exists, err := repo.Has(ctx, "session-1")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.Set(ctx, "session-1", testRecord(time.Now().Add(time.Hour))))

	exists, err = repo.Has(ctx, "session-1")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestInMemoryRepo_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()

	require.NoError(t, repo.Set(ctx, "session-1", testRecord(time.Now().Add(time.Hour))))

	require.NoError(t, repo.Delete(ctx, "session-1"))
	require.NoError(t, repo.Delete(ctx, "session-1"))

	exists, err := repo.Has(ctx, "session-1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestInMemoryRepo_RejectsEmptySessionKey(t *testing.T) {
	ctx := context.Background()
	repo := token.NewInMemoryRepo()

	_, err := repo.Has(ctx, "")
	require.Error(t, err)

	_, err = repo.Get(ctx, "")
	require.Error(t, err)

	require.Error(t, repo.Set(ctx, "", testRecord(time.Now())))
	require.Error(t, repo.Delete(ctx, ""))
}
