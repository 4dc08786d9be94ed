// Package brokersim is a stand-in brokerage for local development: an
// OAuth2 authorization server enforcing PKCE (S256) plus a small bearer-
// gated market data API serving fixture data. Pointing the proxy's
// BROKER_* endpoints at a running simulator exercises the full
// authorize/callback/refresh/revoke loop without real credentials.
package brokersim

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"brokergate/internal/config"
	"brokergate/internal/errors"
	"brokergate/internal/signing"
)

// Config carries the simulator's registered client and token policy.
type Config struct {
	ClientID       string        // The one registered OAuth2 client
	RedirectURIs   []string      // Exact-match redirect allow list
	Issuer         string        // iss claim on minted access tokens
	SigningSecret  string        // HS256 secret; empty means per-process random
	AccessTokenTTL time.Duration // Lifetime of minted access tokens
	CodeTTL        time.Duration // How long an authorization code stays redeemable
	RotateRefresh  bool          // false leaves refresh_token out of refresh responses
	DemoUsername   string
	DemoPassword   string
}

// ConfigFromEnv reads the SIM_* environment, defaulting to values that
// line up with the proxy's BROKER_* defaults.
func ConfigFromEnv() Config {
	return Config{
		ClientID:       config.GetEnv("SIM_CLIENT_ID", "brokergate-local"),
		RedirectURIs:   strings.Fields(config.GetEnv("SIM_REDIRECT_URLS", "http://localhost:8080/api/auth/callback")),
		Issuer:         config.GetEnv("SIM_ISSUER", "http://localhost:9090"),
		SigningSecret:  config.GetEnv("SIM_SIGNING_SECRET", ""),
		AccessTokenTTL: config.GetEnvSeconds("SIM_ACCESS_TOKEN_TTL_SECONDS", 20*time.Minute),
		CodeTTL:        config.GetEnvSeconds("SIM_CODE_TTL_SECONDS", 2*time.Minute),
		RotateRefresh:  config.GetEnv("SIM_REFRESH_ROTATION", "true") == "true",
		DemoUsername:   config.GetEnv("SIM_DEMO_USERNAME", "demo"),
		DemoPassword:   config.GetEnv("SIM_DEMO_PASSWORD", "Demo1234"),
	}
}

// Simulator owns the simulated brokerage's HTTP surface and state.
type Simulator struct {
	mux     *http.ServeMux
	config  Config
	signer  signing.Signer
	holders *AccountHolders
	codes   *codeStore
	refresh *refreshTokenStore
	revoked *revocationList
	nowTime func() time.Time
}

type SimulatorOption func(*Simulator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		s.nowTime = nowFunc
	}
}

func New(cfg Config, options ...SimulatorOption) (*Simulator, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[Simulator New] ClientID is required")
	}
	if len(cfg.RedirectURIs) == 0 {
		return nil, errors.New("[Simulator New] at least one redirect URI is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, errors.New("[Simulator New] AccessTokenTTL must be positive")
	}
	if cfg.CodeTTL <= 0 {
		return nil, errors.New("[Simulator New] CodeTTL must be positive")
	}

	secret := []byte(cfg.SigningSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrapf(errors.ErrEntropyUnavailable, "generating signing secret failed with %v", err)
		}
	}

	holders, err := NewAccountHolders(cfg.DemoUsername, cfg.DemoPassword)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		mux:     http.NewServeMux(),
		config:  cfg,
		signer:  signing.NewHMACSigner(secret),
		holders: holders,
		codes:   newCodeStore(),
		refresh: newRefreshTokenStore(),
		revoked: newRevocationList(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	s.mux.HandleFunc("GET /oauth2/authorize", s.AuthorizeHandler())
	s.mux.HandleFunc("POST /oauth2/token", s.TokenHandler())
	s.mux.HandleFunc("POST /oauth2/revoke", s.RevokeHandler())
	s.mux.HandleFunc("GET /v1/accounts", s.RequireBearer(s.AccountsHandler()))
	s.mux.HandleFunc("GET /v1/quotes", s.RequireBearer(s.QuotesHandler()))
	s.mux.HandleFunc("GET /v1/orders", s.RequireBearer(s.OrdersHandler()))

	return s, nil
}

func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// randomToken returns 32 bytes of entropy, hex encoded. Used for
// authorization codes and refresh tokens.
func randomToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrapf(errors.ErrEntropyUnavailable, "generating token failed with %v", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}
