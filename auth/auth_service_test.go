package auth_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"brokergate/auth"
	"brokergate/auth/attemptrepo"
	"brokergate/internal/errors"
	"brokergate/token"
	tokenfakerepo "brokergate/token/repofake"
)

const (
	testSessionKey   = "session-1"
	testAuthCode     = "auth-code-1"
	testAccessToken  = "access-1"
	testRefreshToken = "refresh-1"
	testExpiryBuffer = 30 * time.Second
)

// fakeProvider stands in for the brokerage OAuth client. It counts calls
// and records the last values presented so tests can assert exactly what
// went over the wire.
type fakeProvider struct {
	lock sync.Mutex

	exchangeCalls int
	refreshCalls  int
	revokeCalls   int

	lastExchangeCode     string
	lastExchangeVerifier string
	lastRefreshToken     string
	lastRevokedToken     string

	exchangeResult *oauth2.Token
	exchangeErr    error
	refreshResult  *oauth2.Token
	refreshErr     error
	refreshDelay   time.Duration
	revokeErr      error
}

func (p *fakeProvider) AuthCodeURL(state, codeChallenge string) string {
	return "https://broker.example/oauth2/authorize?client_id=brokergate-local&response_type=code" +
		"&state=" + state + "&code_challenge=" + codeChallenge + "&code_challenge_method=S256"
}

func (p *fakeProvider) Exchange(_ context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.exchangeCalls++
	p.lastExchangeCode = code
	p.lastExchangeVerifier = codeVerifier
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeResult, nil
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	p.lock.Lock()
	p.refreshCalls++
	p.lastRefreshToken = refreshToken
	result, err, delay := p.refreshResult, p.refreshErr, p.refreshDelay
	p.lock.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *fakeProvider) Revoke(_ context.Context, refreshToken string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.revokeCalls++
	p.lastRevokedToken = refreshToken
	return p.revokeErr
}

func (p *fakeProvider) counts() (exchange, refresh, revoke int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.exchangeCalls, p.refreshCalls, p.revokeCalls
}

// testFixture holds all test dependencies
type testFixture struct {
	attemptRepo *attemptrepo.InMemoryRepo
	tokenRepo   *tokenfakerepo.FakeTokenRepo
	provider    *fakeProvider
	service     *auth.AuthorizationService
	now         time.Time
}

// setupTestFixture creates a new test fixture with all dependencies.
// The attempt repo runs without a TTL so the frozen test clock cannot
// interact with the repo's real-time expiry.
func setupTestFixture(t *testing.T, options ...auth.AuthorizationServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		attemptRepo: attemptrepo.NewInMemoryRepo(0),
		tokenRepo:   tokenfakerepo.NewFakeTokenRepo(),
		provider:    &fakeProvider{},
		now:         time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	t.Cleanup(f.attemptRepo.Stop)

	opts := append([]auth.AuthorizationServiceOption{
		auth.WithNowTime(func() time.Time { return f.now }),
		auth.WithExpiryBuffer(testExpiryBuffer),
	}, options...)

	service, err := auth.NewAuthorizationService(auth.Repos{
		Attempts: f.attemptRepo,
		Tokens:   f.tokenRepo,
	}, f.provider, opts...)
	require.NoError(t, err)

	f.service = service
	return f
}

// startAuthorization runs StartAuthorization and pulls the state and
// challenge back out of the returned URL.
func (f *testFixture) startAuthorization(t *testing.T) (state, codeChallenge string) {
	t.Helper()

	authURL, err := f.service.StartAuthorization(testSessionKey)
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	query := parsed.Query()
	require.NotEmpty(t, query.Get("state"))
	require.NotEmpty(t, query.Get("code_challenge"))
	return query.Get("state"), query.Get("code_challenge")
}

// seedRecord plants a stored token record directly, bypassing the flow
func (f *testFixture) seedRecord(t *testing.T, expiresAt time.Time) {
	t.Helper()

	err := f.tokenRepo.Set(context.Background(), testSessionKey, &token.Record{
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
}

func TestNewAuthorizationService_RequiresDependencies(t *testing.T) {
	attempts := attemptrepo.NewInMemoryRepo(0)
	defer attempts.Stop()
	tokens := tokenfakerepo.NewFakeTokenRepo()

	_, err := auth.NewAuthorizationService(auth.Repos{Tokens: tokens}, &fakeProvider{})
	require.Error(t, err)

	_, err = auth.NewAuthorizationService(auth.Repos{Attempts: attempts}, &fakeProvider{})
	require.Error(t, err)

	_, err = auth.NewAuthorizationService(auth.Repos{Attempts: attempts, Tokens: tokens}, nil)
	require.Error(t, err)
}

func TestStartAuthorization_IssuesAttemptAndBuildsURL(t *testing.T) {
	f := setupTestFixture(t)

	state, codeChallenge := f.startAuthorization(t)

	attempt, err := f.attemptRepo.Get(testSessionKey)
	require.NoError(t, err)
	require.Equal(t, state, attempt.State)
	require.Equal(t, auth.ChallengeS256(attempt.CodeVerifier), codeChallenge)

	// URL construction is purely local
	exchange, refresh, revoke := f.provider.counts()
	require.Zero(t, exchange)
	require.Zero(t, refresh)
	require.Zero(t, revoke)
}

func TestStartAuthorization_ReplacesPriorAttempt(t *testing.T) {
	f := setupTestFixture(t)

	first, _ := f.startAuthorization(t)
	second, _ := f.startAuthorization(t)
	require.NotEqual(t, first, second)

	attempt, err := f.attemptRepo.Get(testSessionKey)
	require.NoError(t, err)
	require.Equal(t, second, attempt.State)
}

func TestCompleteAuthorization_RoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, codeChallenge := f.startAuthorization(t)
	f.provider.exchangeResult = &oauth2.Token{
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		ExpiresIn:    3600,
	}

	record, err := f.service.CompleteAuthorization(ctx, testSessionKey, testAuthCode, state)
	require.NoError(t, err)
	require.Equal(t, testAccessToken, record.AccessToken)
	require.Equal(t, testRefreshToken, record.RefreshToken)
	require.Equal(t, f.now.Add(3600*time.Second).Add(-testExpiryBuffer), record.ExpiresAt)

	// The provider saw the code and the verifier matching the challenge
	require.Equal(t, testAuthCode, f.provider.lastExchangeCode)
	require.Equal(t, codeChallenge, auth.ChallengeS256(f.provider.lastExchangeVerifier))

	// Record persisted and the attempt consumed
	stored := f.tokenRepo.Stored(testSessionKey)
	require.NotNil(t, stored)
	require.Equal(t, testAccessToken, stored.AccessToken)

	_, err = f.attemptRepo.Get(testSessionKey)
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)
}

func TestCompleteAuthorization_StateMismatchConsumesAttempt(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, _ := f.startAuthorization(t)

	_, err := f.service.CompleteAuthorization(ctx, testSessionKey, testAuthCode, "forged-state")
	require.ErrorIs(t, err, errors.ErrStateMismatch)

	// No outbound call, nothing stored
	exchange, _, _ := f.provider.counts()
	require.Zero(t, exchange)
	require.Zero(t, f.tokenRepo.SetCalls)

	// The attempt is spent: even the genuine state no longer completes
	_, err = f.service.CompleteAuthorization(ctx, testSessionKey, testAuthCode, state)
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)
}

func TestCompleteAuthorization_NoPendingAttempt(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.CompleteAuthorization(context.Background(), testSessionKey, testAuthCode, "state-1")
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)

	exchange, _, _ := f.provider.counts()
	require.Zero(t, exchange)
}

func TestCompleteAuthorization_ExchangeFailure(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, _ := f.startAuthorization(t)
	f.provider.exchangeErr = errors.NewExchangeError(400, `{"error":"invalid_grant"}`)

	_, err := f.service.CompleteAuthorization(ctx, testSessionKey, testAuthCode, state)
	require.ErrorIs(t, err, errors.ErrExchangeFailed)

	var providerErr *errors.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, 400, providerErr.StatusCode)
	require.Equal(t, `{"error":"invalid_grant"}`, providerErr.Body)

	// No record written, attempt spent
	require.Zero(t, f.tokenRepo.SetCalls)
	_, err = f.attemptRepo.Get(testSessionKey)
	require.ErrorIs(t, err, errors.ErrNoPendingAttempt)
}

func TestCompleteAuthorization_NetworkFailure(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, _ := f.startAuthorization(t)
	f.provider.exchangeErr = errors.Wrapf(errors.ErrNetwork, "dialing broker")

	_, err := f.service.CompleteAuthorization(ctx, testSessionKey, testAuthCode, state)
	require.ErrorIs(t, err, errors.ErrNetwork)
	require.Zero(t, f.tokenRepo.SetCalls)
}

func TestRefresh_ReplacesRecord(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	// Authorize at t0 with a one-hour token, then refresh near its end
	state, _ := f.startAuthorization(t)
	f.provider.exchangeResult = &oauth2.Token{
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		ExpiresIn:    3600,
	}
	_, err := f.service.CompleteAuthorization(ctx, testSessionKey, testAuthCode, state)
	require.NoError(t, err)

	f.now = f.now.Add(3500 * time.Second)
	f.provider.refreshResult = &oauth2.Token{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresIn:    7200,
	}

	record, err := f.service.Refresh(ctx, testSessionKey)
	require.NoError(t, err)
	require.Equal(t, "access-2", record.AccessToken)
	require.Equal(t, "refresh-2", record.RefreshToken)
	require.Equal(t, f.now.Add(7200*time.Second).Add(-testExpiryBuffer), record.ExpiresAt)

	require.Equal(t, testRefreshToken, f.provider.lastRefreshToken)

	stored := f.tokenRepo.Stored(testSessionKey)
	require.Equal(t, "access-2", stored.AccessToken)
	require.Equal(t, "refresh-2", stored.RefreshToken)
}

func TestRefresh_PreservesRefreshTokenWhenNotRotated(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.seedRecord(t, f.now.Add(time.Hour))
	f.provider.refreshResult = &oauth2.Token{
		AccessToken: "access-2",
		ExpiresIn:   3600,
	}

	record, err := f.service.Refresh(ctx, testSessionKey)
	require.NoError(t, err)
	require.Equal(t, "access-2", record.AccessToken)
	require.Equal(t, testRefreshToken, record.RefreshToken)

	stored := f.tokenRepo.Stored(testSessionKey)
	require.Equal(t, testRefreshToken, stored.RefreshToken)
}

func TestRefresh_FailureLeavesStoredRecordUntouched(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	expiresAt := f.now.Add(time.Hour)
	f.seedRecord(t, expiresAt)
	f.provider.refreshErr = errors.NewRefreshError(401, `{"error":"invalid_grant"}`)

	_, err := f.service.Refresh(ctx, testSessionKey)
	require.ErrorIs(t, err, errors.ErrRefreshFailed)

	var providerErr *errors.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, 401, providerErr.StatusCode)

	stored := f.tokenRepo.Stored(testSessionKey)
	require.Equal(t, testAccessToken, stored.AccessToken)
	require.Equal(t, testRefreshToken, stored.RefreshToken)
	require.True(t, stored.ExpiresAt.Equal(expiresAt))
}

func TestRefresh_WithoutStoredRecord(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Refresh(context.Background(), testSessionKey)
	require.ErrorIs(t, err, errors.ErrNoStoredToken)

	_, refresh, _ := f.provider.counts()
	require.Zero(t, refresh)
}

func TestRefresh_ConcurrentCallsShareOneOutboundRequest(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.seedRecord(t, f.now.Add(time.Hour))
	f.provider.refreshDelay = 200 * time.Millisecond
	f.provider.refreshResult = &oauth2.Token{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresIn:    3600,
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*token.Record, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Refresh(ctx, testSessionKey)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "access-2", results[i].AccessToken)
	}

	_, refresh, _ := f.provider.counts()
	require.Equal(t, 1, refresh)
}

func TestAuthorize_ReturnsAccessTokenWhileLive(t *testing.T) {
	f := setupTestFixture(t)

	f.seedRecord(t, f.now.Add(time.Hour))

	accessToken, err := f.service.Authorize(context.Background(), testSessionKey)
	require.NoError(t, err)
	require.Equal(t, testAccessToken, accessToken)
}

func TestAuthorize_ExpiryBoundary(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	expiresAt := f.now.Add(time.Hour)
	f.seedRecord(t, expiresAt)

	t.Run("live one millisecond before expiry", func(t *testing.T) {
		f.now = expiresAt.Add(-time.Millisecond)
		accessToken, err := f.service.Authorize(ctx, testSessionKey)
		require.NoError(t, err)
		require.Equal(t, testAccessToken, accessToken)
	})

	t.Run("expired one millisecond after expiry", func(t *testing.T) {
		f.now = expiresAt.Add(time.Millisecond)
		_, err := f.service.Authorize(ctx, testSessionKey)
		require.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("expired at the exact instant", func(t *testing.T) {
		f.now = expiresAt
		_, err := f.service.Authorize(ctx, testSessionKey)
		require.ErrorIs(t, err, errors.ErrTokenExpired)
	})
}

func TestAuthorize_WithoutRecord(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Authorize(context.Background(), testSessionKey)
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestAuthorize_RefreshOnExpiry(t *testing.T) {
	t.Run("stale record is refreshed transparently", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithRefreshOnExpiry(true))
		ctx := context.Background()

		f.seedRecord(t, f.now.Add(-time.Minute))
		f.provider.refreshResult = &oauth2.Token{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresIn:    3600,
		}

		accessToken, err := f.service.Authorize(ctx, testSessionKey)
		require.NoError(t, err)
		require.Equal(t, "access-2", accessToken)

		_, refresh, _ := f.provider.counts()
		require.Equal(t, 1, refresh)
	})

	t.Run("failed refresh reports expiry", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithRefreshOnExpiry(true))
		ctx := context.Background()

		f.seedRecord(t, f.now.Add(-time.Minute))
		f.provider.refreshErr = errors.NewRefreshError(401, `{"error":"invalid_grant"}`)

		_, err := f.service.Authorize(ctx, testSessionKey)
		require.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("default policy never refreshes", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()

		f.seedRecord(t, f.now.Add(-time.Minute))

		_, err := f.service.Authorize(ctx, testSessionKey)
		require.ErrorIs(t, err, errors.ErrTokenExpired)

		_, refresh, _ := f.provider.counts()
		require.Zero(t, refresh)
	})
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.seedRecord(t, f.now.Add(time.Hour))

	require.NoError(t, f.service.Logout(ctx, testSessionKey))

	exists, err := f.tokenRepo.Has(ctx, testSessionKey)
	require.NoError(t, err)
	require.False(t, exists)

	// A second logout with nothing stored succeeds identically
	require.NoError(t, f.service.Logout(ctx, testSessionKey))

	_, _, revoke := f.provider.counts()
	require.Zero(t, revoke)
}

func TestLogout_RevokesWhenEnabled(t *testing.T) {
	t.Run("revokes the stored refresh token", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithRevokeOnLogout(true))
		ctx := context.Background()

		f.seedRecord(t, f.now.Add(time.Hour))

		require.NoError(t, f.service.Logout(ctx, testSessionKey))
		require.Equal(t, testRefreshToken, f.provider.lastRevokedToken)

		exists, err := f.tokenRepo.Has(ctx, testSessionKey)
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("revocation failure never blocks logout", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithRevokeOnLogout(true))
		ctx := context.Background()

		f.seedRecord(t, f.now.Add(time.Hour))
		f.provider.revokeErr = errors.New("revocation endpoint down")

		require.NoError(t, f.service.Logout(ctx, testSessionKey))

		exists, err := f.tokenRepo.Has(ctx, testSessionKey)
		require.NoError(t, err)
		require.False(t, exists)
	})
}

func TestStatus_ReportsTokenState(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	t.Run("unauthenticated without a record", func(t *testing.T) {
		status, err := f.service.Status(ctx, testSessionKey)
		require.NoError(t, err)
		require.False(t, status.Authenticated)
	})

	t.Run("authenticated while live", func(t *testing.T) {
		expiresAt := f.now.Add(time.Hour)
		f.seedRecord(t, expiresAt)

		status, err := f.service.Status(ctx, testSessionKey)
		require.NoError(t, err)
		require.True(t, status.Authenticated)
		require.True(t, status.ExpiresAt.Equal(expiresAt))
	})

	t.Run("unauthenticated once stale", func(t *testing.T) {
		f.now = f.now.Add(2 * time.Hour)

		status, err := f.service.Status(ctx, testSessionKey)
		require.NoError(t, err)
		require.False(t, status.Authenticated)
	})
}
