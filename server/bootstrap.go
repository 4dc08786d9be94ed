package server

import (
	"context"

	"github.com/rs/zerolog/log"

	"brokergate/auth"
	"brokergate/auth/attemptrepo"
	"brokergate/broker"
	"brokergate/internal/config"
	"brokergate/internal/errors"
	"brokergate/token"
)

// NewFromConfig wires the full proxy from configuration: the token store
// backend, the attempt repo, the brokerage clients, the session manager,
// and the authorization service on top of them. The returned Server owns
// the store connection; callers must Close it on shutdown.
func NewFromConfig(ctx context.Context, cfg config.Config) (*Server, error) {
	tokenRepo, closeStore, err := newTokenRepo(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewFromConfig] token store")
	}
	closeOnFailure := func() {
		if closeStore != nil {
			_ = closeStore()
		}
	}

	provider, err := broker.NewOAuthClient(ctx, brokerConfig(cfg))
	if err != nil {
		closeOnFailure()
		return nil, errors.Wrapf(err, "[NewFromConfig] broker oauth client")
	}

	attempts := attemptrepo.NewInMemoryRepo(cfg.GetAttemptTTL())

	authService, err := auth.NewAuthorizationService(
		auth.Repos{Attempts: attempts, Tokens: tokenRepo},
		provider,
		auth.WithExpiryBuffer(cfg.GetTokenExpiryBuffer()),
		auth.WithRefreshOnExpiry(cfg.GetRefreshOnExpiry()),
		auth.WithRevokeOnLogout(cfg.GetRevokeOnLogout()),
	)
	if err != nil {
		attempts.Stop()
		closeOnFailure()
		return nil, errors.Wrapf(err, "[NewFromConfig] authorization service")
	}

	sessions, err := NewSessionManager(cfg.GetSessionCookieName(), cfg.GetSessionSigningSecret(), cfg.GetSessionTTL())
	if err != nil {
		attempts.Stop()
		closeOnFailure()
		return nil, errors.Wrapf(err, "[NewFromConfig] session manager")
	}

	s, err := New(cfg, authService, broker.NewAPIClient(brokerConfig(cfg)), sessions)
	if err != nil {
		attempts.Stop()
		closeOnFailure()
		return nil, err
	}

	s.closers = append(s.closers, func() error {
		attempts.Stop()
		return nil
	})
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}

	log.Info().
		Str("tokenStore", cfg.GetTokenStoreBackend()).
		Str("brokerAPI", cfg.GetBrokerAPIURL()).
		Bool("refreshOnExpiry", cfg.GetRefreshOnExpiry()).
		Bool("revokeOnLogout", cfg.GetRevokeOnLogout()).
		Msg("Proxy wired")

	return s, nil
}

// newTokenRepo selects the token store backend. The redis TTL is the
// session lifetime: records must outlive the access token they hold,
// because the refresh token inside stays usable until the session ends.
func newTokenRepo(ctx context.Context, cfg config.Config) (token.Repo, func() error, error) {
	switch backend := cfg.GetTokenStoreBackend(); backend {
	case config.TokenStoreMemory:
		return token.NewInMemoryRepo(), nil, nil
	case config.TokenStoreRedis:
		repo, err := token.NewRedisRepo(ctx, cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB(), cfg.GetRedisKeyPrefix(), cfg.GetSessionTTL())
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.TokenStoreMySQL:
		repo, err := token.NewMySQLRepo(ctx, cfg.GetMySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, errors.Wrapf(errors.ErrUnsupported, "unknown token store backend %q", backend)
	}
}

// brokerConfig maps the env-backed configuration onto the broker
// package's config struct.
func brokerConfig(cfg config.Config) broker.Config {
	return broker.Config{
		ClientID:       cfg.GetBrokerClientID(),
		RedirectURL:    cfg.GetBrokerRedirectURL(),
		Scopes:         cfg.GetBrokerScopes(),
		AuthURL:        cfg.GetBrokerAuthURL(),
		TokenURL:       cfg.GetBrokerTokenURL(),
		RevokeURL:      cfg.GetBrokerRevokeURL(),
		IssuerURL:      cfg.GetBrokerIssuerURL(),
		APIURL:         cfg.GetBrokerAPIURL(),
		HTTPTimeout:    cfg.GetBrokerHTTPTimeout(),
		RateLimitRPS:   cfg.GetBrokerRateLimitRPS(),
		RateLimitBurst: cfg.GetBrokerRateLimitBurst(),
	}
}
