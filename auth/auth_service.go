package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"brokergate/auth/attemptrepo"
	"brokergate/internal/errors"
	"brokergate/token"
)

// defaultExpiryBuffer is subtracted from the provider-declared token
// lifetime when deriving the stored expiry, so a token considered live
// here is never rejected as expired by the brokerage.
const defaultExpiryBuffer = 30 * time.Second

// Provider performs the outbound OAuth2 calls against the brokerage.
// Implementations live in the broker package; tests substitute fakes.
type Provider interface {
	// AuthCodeURL builds the front-end redirect target for the hosted
	// authorization page. No network call.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange redeems an authorization code, presenting the PKCE verifier.
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// Revoke invalidates a refresh token with the provider.
	Revoke(ctx context.Context, refreshToken string) error
}

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Attempts attemptrepo.Repo // Pending authorization attempts (state + verifier)
	Tokens   token.Repo       // Stored token records, keyed by session key
}

// Status reports whether a session currently holds a live token.
type Status struct {
	Authenticated bool
	ExpiresAt     time.Time
}

// AuthorizationService brokers the authorization-code flow between the
// front end and the brokerage: it issues authorization URLs, completes
// callbacks, refreshes tokens, and gates downstream calls.
type AuthorizationService struct {
	repos           Repos
	provider        Provider
	nowTime         func() time.Time // nowTime function (injectable for testing)
	expiryBuffer    time.Duration
	refreshOnExpiry bool
	revokeOnLogout  bool
	refreshGroup    singleflight.Group
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithExpiryBuffer sets how far before the provider-declared expiry a
// stored token is already treated as stale.
func WithExpiryBuffer(buffer time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.expiryBuffer = buffer
	}
}

// WithRefreshOnExpiry makes Authorize refresh a stale token transparently
// instead of failing with ErrTokenExpired.
func WithRefreshOnExpiry(enabled bool) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.refreshOnExpiry = enabled
	}
}

// WithRevokeOnLogout makes Logout attempt a best-effort revocation of the
// stored refresh token before deleting the record.
func WithRevokeOnLogout(enabled bool) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.revokeOnLogout = enabled
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewAuthorizationService(
	repos Repos,
	provider Provider,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	// Validate required parameters
	if repos.Attempts == nil {
		return nil, errors.New("[NewAuthorizationService] Attempts repo is required")
	}
	if repos.Tokens == nil {
		return nil, errors.New("[NewAuthorizationService] Tokens repo is required")
	}
	if provider == nil {
		return nil, errors.New("[NewAuthorizationService] provider is required")
	}

	authService := &AuthorizationService{
		repos:        repos,
		provider:     provider,
		nowTime:      time.Now,
		expiryBuffer: defaultExpiryBuffer,
	}

	// Apply optional configuration
	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// StartAuthorization begins a new authorization attempt for the session:
// it generates state and PKCE material, records the pending attempt, and
// returns the authorization URL for the front end to follow. Any previous
// pending attempt for the session is replaced. No network call is made.
func (as *AuthorizationService) StartAuthorization(sessionKey string) (string, error) {
	state, codeVerifier, codeChallenge, err := Begin()
	if err != nil {
		return "", err
	}

	err = as.repos.Attempts.Upsert(sessionKey, &attemptrepo.Attempt{
		State:        state,
		CodeVerifier: codeVerifier,
		CreatedAt:    as.nowTime(),
	})
	if err != nil {
		return "", errors.Wrapf(err, "[AuthorizationService.StartAuthorization] attempts.Upsert")
	}

	return as.provider.AuthCodeURL(state, codeChallenge), nil
}

// CompleteAuthorization consumes the pending attempt for the session and
// redeems the authorization code. The attempt is discarded before the
// state comparison so it is spent whether the callback succeeds or not;
// a retry after any failure must restart from StartAuthorization.
//
// Fails with ErrNoPendingAttempt when no attempt exists (no outbound call
// is made), ErrStateMismatch when the returned state differs from the one
// issued, ErrExchangeFailed or ErrNetwork when the exchange itself fails.
// Only a successful exchange writes a token record.
func (as *AuthorizationService) CompleteAuthorization(ctx context.Context, sessionKey, receivedCode, receivedState string) (*token.Record, error) {
	attempt, err := as.repos.Attempts.Get(sessionKey)
	if err != nil {
		return nil, err
	}

	// Single use: spend the attempt before validating anything
	if err := as.repos.Attempts.Delete(sessionKey); err != nil {
		return nil, errors.Wrapf(err, "[AuthorizationService.CompleteAuthorization] attempts.Delete")
	}

	if subtle.ConstantTimeCompare([]byte(attempt.State), []byte(receivedState)) != 1 {
		return nil, errors.ErrStateMismatch
	}

	tok, err := as.provider.Exchange(ctx, receivedCode, attempt.CodeVerifier)
	if err != nil {
		return nil, err
	}

	record := as.recordFromToken(tok)
	if err := as.repos.Tokens.Set(ctx, sessionKey, record); err != nil {
		return nil, errors.Wrapf(err, "[AuthorizationService.CompleteAuthorization] tokens.Set")
	}

	return record, nil
}

// Refresh replaces the stored token record using its refresh token.
// Concurrent calls for the same session are collapsed into one outbound
// request; every caller receives the same result. When the provider omits
// a rotated refresh token the prior one is carried over verbatim. On
// failure the stored record is left untouched, so the caller can decide
// between retrying and restarting authorization.
func (as *AuthorizationService) Refresh(ctx context.Context, sessionKey string) (*token.Record, error) {
	result, err, _ := as.refreshGroup.Do(sessionKey, func() (interface{}, error) {
		return as.refresh(ctx, sessionKey)
	})
	if err != nil {
		return nil, err
	}
	return result.(*token.Record), nil
}

func (as *AuthorizationService) refresh(ctx context.Context, sessionKey string) (*token.Record, error) {
	record, err := as.repos.Tokens.Get(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	tok, err := as.provider.Refresh(ctx, record.RefreshToken)
	if err != nil {
		return nil, err
	}

	refreshed := as.recordFromToken(tok)
	if refreshed.RefreshToken == "" {
		// Provider did not rotate; keep presenting the prior refresh token
		refreshed.RefreshToken = record.RefreshToken
	}

	if err := as.repos.Tokens.Set(ctx, sessionKey, refreshed); err != nil {
		return nil, errors.Wrapf(err, "[AuthorizationService.Refresh] tokens.Set")
	}

	return refreshed, nil
}

// Authorize gates a downstream brokerage call: it returns the access token
// to present, ErrUnauthenticated when the session holds no record, or
// ErrTokenExpired when the record is stale. With refresh-on-expiry enabled
// a stale record triggers one transparent Refresh first; if that fails the
// gate still reports ErrTokenExpired and the caller re-authorizes.
func (as *AuthorizationService) Authorize(ctx context.Context, sessionKey string) (string, error) {
	record, err := as.repos.Tokens.Get(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, errors.ErrNoStoredToken) {
			return "", errors.ErrUnauthenticated
		}
		return "", errors.Wrapf(err, "[AuthorizationService.Authorize] tokens.Get")
	}

	if !record.Expired(as.nowTime()) {
		return record.AccessToken, nil
	}

	if !as.refreshOnExpiry {
		return "", errors.ErrTokenExpired
	}

	refreshed, err := as.Refresh(ctx, sessionKey)
	if err != nil {
		return "", errors.ErrTokenExpired
	}
	return refreshed.AccessToken, nil
}

// Logout removes the stored token record for the session. Logging out a
// session with no record is not an error. With revoke-on-logout enabled
// the stored refresh token is first revoked with the provider on a
// best-effort basis; a failed revocation never blocks the local logout.
func (as *AuthorizationService) Logout(ctx context.Context, sessionKey string) error {
	if as.revokeOnLogout {
		if record, err := as.repos.Tokens.Get(ctx, sessionKey); err == nil {
			_ = as.provider.Revoke(ctx, record.RefreshToken)
		}
	}

	if err := as.repos.Tokens.Delete(ctx, sessionKey); err != nil {
		return errors.Wrapf(err, "[AuthorizationService.Logout] tokens.Delete")
	}
	return nil
}

// Status reports whether the session currently holds a live token and
// when it goes stale. A session with no record is simply unauthenticated.
func (as *AuthorizationService) Status(ctx context.Context, sessionKey string) (Status, error) {
	record, err := as.repos.Tokens.Get(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, errors.ErrNoStoredToken) {
			return Status{}, nil
		}
		return Status{}, errors.Wrapf(err, "[AuthorizationService.Status] tokens.Get")
	}

	return Status{
		Authenticated: !record.Expired(as.nowTime()),
		ExpiresAt:     record.ExpiresAt,
	}, nil
}

// recordFromToken derives the stored record from a provider response.
// The provider-declared lifetime is preferred; the library-computed expiry
// is the fallback when only that is present. A response with neither
// yields a record that is immediately stale but still refreshable.
func (as *AuthorizationService) recordFromToken(tok *oauth2.Token) *token.Record {
	if tok.ExpiresIn > 0 {
		return token.NewRecord(tok.AccessToken, tok.RefreshToken, as.nowTime(), tok.ExpiresIn, as.expiryBuffer)
	}

	record := &token.Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		record.ExpiresAt = tok.Expiry.Add(-as.expiryBuffer)
	}
	return record
}
