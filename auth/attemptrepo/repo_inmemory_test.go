package attemptrepo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brokergate/auth/attemptrepo"
	"brokergate/internal/errors"
)

func testAttempt(createdAt time.Time) *attemptrepo.Attempt {
	return &attemptrepo.Attempt{
		State:        "state-1",
		CodeVerifier: "verifier-1",
		CreatedAt:    createdAt,
	}
}

func TestInMemoryRepo_RoundTrip(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Upsert("session-1", testAttempt(time.Now())))

	got, err := repo.Get("session-1")
	require.NoError(t, err)
	require.Equal(t, "state-1", got.State)
	require.Equal(t, "verifier-1", got.CodeVerifier)
}

func TestInMemoryRepo_GetReturnsCopy(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Upsert("session-1", testAttempt(time.Now())))

	first, err := repo.Get("session-1")
	require.NoError(t, err)
	first.State = "mutated"

	second, err := repo.Get("session-1")
	require.NoError(t, err)
	require.Equal(t, "state-1", second.State)
}

func TestInMemoryRepo_UpsertReplacesPendingAttempt(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Upsert("session-1", testAttempt(time.Now())))
	require.NoError(t, repo.Upsert("session-1", &attemptrepo.Attempt{
		State:        "state-2",
		CodeVerifier: "verifier-2",
		CreatedAt:    time.Now(),
	}))

	got, err := repo.Get("session-1")
	require.NoError(t, err)
	require.Equal(t, "state-2", got.State)
}

func TestInMemoryRepo_GetMissingKey(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	defer repo.Stop()

	_, err := repo.Get("session-1")
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)
}

func TestInMemoryRepo_ExpiredAttemptBehavesAsMissing(t *testing.T) {
	ttl := 10 * time.Minute
	repo := attemptrepo.NewInMemoryRepo(ttl)
	defer repo.Stop()

	require.NoError(t, repo.Upsert("session-1", testAttempt(time.Now().Add(-2*ttl))))

	_, err := repo.Get("session-1")
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)
}

func TestInMemoryRepo_ZeroTTLDisablesExpiry(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(0)
	defer repo.Stop()

	require.NoError(t, repo.Upsert("session-1", testAttempt(time.Now().Add(-24*time.Hour))))

	got, err := repo.Get("session-1")
	require.NoError(t, err)
	require.Equal(t, "state-1", got.State)
}

func TestInMemoryRepo_DeleteIsIdempotent(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Upsert("session-1", testAttempt(time.Now())))

	require.NoError(t, repo.Delete("session-1"))
	require.NoError(t, repo.Delete("session-1"))

	_, err := repo.Get("session-1")
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)
}

func TestInMemoryRepo_RejectsEmptySessionKey(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	defer repo.Stop()

	require.Error(t, repo.Upsert("", testAttempt(time.Now())))

	_, err := repo.Get("")
	require.Error(t, err)

	require.Error(t, repo.Delete(""))
}

func TestInMemoryRepo_StopIsSafeToCallTwice(t *testing.T) {
	repo := attemptrepo.NewInMemoryRepo(10 * time.Minute)
	repo.Stop()
	repo.Stop()
}
