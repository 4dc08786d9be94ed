package broker

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"brokergate/auth"
	"brokergate/internal/errors"
)

// Config carries where the brokerage hosts its OAuth2 and API surfaces
// plus the client identity this service presents. When IssuerURL is set
// the OAuth2 endpoints come from OIDC discovery and the explicit
// AuthURL/TokenURL are ignored.
type Config struct {
	ClientID    string
	RedirectURL string
	Scopes      []string

	AuthURL   string
	TokenURL  string
	RevokeURL string
	IssuerURL string

	APIURL         string
	HTTPTimeout    time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

var _ auth.Provider = (*OAuthClient)(nil)

// OAuthClient performs the outbound OAuth2 calls against the brokerage:
// authorization URL construction, code exchange, refresh, and revocation.
// All token-endpoint calls are form encoded with the client identifier in
// the body, which is what brokerage token endpoints expect from a public
// client.
type OAuthClient struct {
	conf       *oauth2.Config
	revokeURL  string
	httpClient *http.Client
}

// NewOAuthClient resolves the brokerage endpoints (via OIDC discovery when
// an issuer is configured) and builds the client.
func NewOAuthClient(ctx context.Context, cfg Config) (*OAuthClient, error) {
	endpoint, err := resolveEndpoint(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &OAuthClient{
		conf: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint:    endpoint,
		},
		revokeURL:  cfg.RevokeURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func resolveEndpoint(ctx context.Context, cfg Config) (oauth2.Endpoint, error) {
	if cfg.IssuerURL != "" {
		provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
		if err != nil {
			return oauth2.Endpoint{}, errors.Wrapf(err, "[NewOAuthClient] oidc discovery for %s", cfg.IssuerURL)
		}
		endpoint := provider.Endpoint()
		endpoint.AuthStyle = oauth2.AuthStyleInParams
		return endpoint, nil
	}

	return oauth2.Endpoint{
		AuthURL:   cfg.AuthURL,
		TokenURL:  cfg.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}, nil
}

// AuthCodeURL builds the hosted authorization page URL for one attempt.
// Only the challenge travels here; the verifier is presented at exchange.
func (c *OAuthClient) AuthCodeURL(state, codeChallenge string) string {
	return c.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange redeems an authorization code, presenting the PKCE verifier.
// Provider rejections surface as ErrExchangeFailed carrying the status
// and body; transport failures as ErrNetwork.
func (c *OAuthClient) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	tok, err := c.conf.Exchange(c.withHTTPClient(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, providerError(errors.ErrExchangeFailed, err)
	}
	return tok, nil
}

// Refresh mints a new access token from a refresh token. Provider
// rejections surface as ErrRefreshFailed, transport failures as ErrNetwork.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := source.Token()
	if err != nil {
		return nil, providerError(errors.ErrRefreshFailed, err)
	}
	return tok, nil
}

// Revoke invalidates a refresh token with the provider. Fails with
// ErrUnsupported when no revocation endpoint is configured.
func (c *OAuthClient) Revoke(ctx context.Context, refreshToken string) error {
	if c.revokeURL == "" {
		return errors.ErrUnsupported
	}

	form := url.Values{}
	form.Set("token", refreshToken)
	form.Set("token_type_hint", "refresh_token")
	form.Set("client_id", c.conf.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrapf(err, "[OAuthClient Revoke] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrNetwork, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewRevokeError(resp.StatusCode, string(body))
	}
	return nil
}

// withHTTPClient routes the oauth2 library's calls through our timeout-
// bounded client.
func (c *OAuthClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// providerError maps an oauth2 library failure onto the domain taxonomy:
// an HTTP-level rejection keeps its status and body, anything else is a
// transport failure.
func providerError(kind, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		statusCode := 0
		if retrieveErr.Response != nil {
			statusCode = retrieveErr.Response.StatusCode
		}
		if errors.Is(kind, errors.ErrExchangeFailed) {
			return errors.NewExchangeError(statusCode, string(retrieveErr.Body))
		}
		return errors.NewRefreshError(statusCode, string(retrieveErr.Body))
	}
	return errors.Wrapf(errors.ErrNetwork, "%v", err)
}
