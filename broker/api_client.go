package broker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brokergate/internal/errors"
)

// Account is a brokerage account summary.
type Account struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Cash     float64 `json:"cash"`
	Equity   float64 `json:"equity"`
}

// Quote is a delayed market quote for one symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
	AsOf   time.Time `json:"asOf"`
}

// Order is a brokerage order as reported by the provider.
type Order struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	LimitPrice float64   `json:"limitPrice,omitempty"`
	Status     string    `json:"status"`
	PlacedAt   time.Time `json:"placedAt"`
}

// APIClient calls the brokerage's REST API with a caller-supplied access
// token. Outbound calls share a token-bucket limiter so a burst of
// front-end traffic cannot trip the brokerage's own rate limits.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAPIClient builds a client for the configured API base URL. A zero
// or negative rate limit disables throttling.
func NewAPIClient(cfg Config) *APIClient {
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &APIClient{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Accounts lists the accounts visible to the access token
func (c *APIClient) Accounts(ctx context.Context, accessToken string) ([]Account, error) {
	var accounts []Account
	if err := c.getJSON(ctx, "/accounts", accessToken, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Quotes fetches quotes, optionally restricted to the given symbols
func (c *APIClient) Quotes(ctx context.Context, accessToken string, symbols []string) ([]Quote, error) {
	var query url.Values
	if len(symbols) > 0 {
		query = url.Values{"symbols": {strings.Join(symbols, ",")}}
	}

	var quotes []Quote
	if err := c.getJSON(ctx, "/quotes", accessToken, query, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Orders lists the orders visible to the access token
func (c *APIClient) Orders(ctx context.Context, accessToken string) ([]Order, error) {
	var orders []Order
	if err := c.getJSON(ctx, "/orders", accessToken, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *APIClient) getJSON(ctx context.Context, path, accessToken string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "[APIClient getJSON] rate limit wait")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrapf(err, "[APIClient getJSON] build request for %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrNetwork, "%v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Wrapf(errors.ErrInternal, "brokerage returned %d for %s: %s", resp.StatusCode, path, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "[APIClient getJSON] decode response for %s", path)
	}
	return nil
}
