package config

import (
	"strconv"
	"strings"
	"time"
)

type BrokerConfig interface {
	GetBrokerClientID() string
	GetBrokerRedirectURL() string
	GetBrokerScopes() []string
	GetBrokerAuthURL() string
	GetBrokerTokenURL() string
	GetBrokerRevokeURL() string
	GetBrokerIssuerURL() string
	GetBrokerAPIURL() string
	GetBrokerHTTPTimeout() time.Duration
	GetBrokerRateLimitRPS() float64
	GetBrokerRateLimitBurst() int
	GetTokenExpiryBuffer() time.Duration
	GetAttemptTTL() time.Duration
}

type Broker struct{}

var _ BrokerConfig = Broker{}

func (Broker) GetBrokerClientID() string {
	return GetEnv("BROKER_CLIENT_ID", "brokergate-local")
}

// GetBrokerRedirectURL returns the redirect URI registered with the
// brokerage. Defaults to the callback route on this proxy's base URL.
func (Broker) GetBrokerRedirectURL() string {
	return GetEnv("BROKER_REDIRECT_URL", EnvVars{}.GetBaseURL()+"/api/auth/callback")
}

func (Broker) GetBrokerScopes() []string {
	return strings.Fields(GetEnv("BROKER_SCOPES", "openapi"))
}

func (Broker) GetBrokerAuthURL() string {
	return GetEnv("BROKER_AUTH_URL", "http://localhost:9090/oauth2/authorize")
}

func (Broker) GetBrokerTokenURL() string {
	return GetEnv("BROKER_TOKEN_URL", "http://localhost:9090/oauth2/token")
}

// GetBrokerRevokeURL returns the provider's token revocation endpoint, or
// "" when the provider does not offer one.
func (Broker) GetBrokerRevokeURL() string {
	return GetEnv("BROKER_REVOKE_URL", "")
}

// GetBrokerIssuerURL, when set, switches endpoint resolution to OIDC
// discovery against the issuer and overrides the explicit auth/token URLs.
func (Broker) GetBrokerIssuerURL() string {
	return GetEnv("BROKER_ISSUER_URL", "")
}

func (Broker) GetBrokerAPIURL() string {
	return GetEnv("BROKER_API_URL", "http://localhost:9090/v1")
}

func (Broker) GetBrokerHTTPTimeout() time.Duration {
	return GetEnvSeconds("BROKER_HTTP_TIMEOUT_SECONDS", 30*time.Second)
}

func (Broker) GetBrokerRateLimitRPS() float64 {
	value := GetEnv("BROKER_RATE_LIMIT_RPS", "")
	if value == "" {
		return 10
	}
	rps, err := strconv.ParseFloat(value, 64)
	if err != nil || rps <= 0 {
		return 10
	}
	return rps
}

func (Broker) GetBrokerRateLimitBurst() int {
	return GetEnvInt("BROKER_RATE_LIMIT_BURST", 20)
}

// GetTokenExpiryBuffer is subtracted from the provider-declared token
// lifetime when deriving expiresAt, so a token the gate considers live is
// still valid with the provider at call time.
func (Broker) GetTokenExpiryBuffer() time.Duration {
	return GetEnvSeconds("TOKEN_EXPIRY_BUFFER_SECONDS", 30*time.Second)
}

// GetAttemptTTL bounds how long a pending authorization attempt may wait
// for its callback before the sweep discards it.
func (Broker) GetAttemptTTL() time.Duration {
	minutes := GetEnvInt("AUTH_ATTEMPT_TTL_MINUTES", 10)
	return time.Duration(minutes) * time.Minute
}
