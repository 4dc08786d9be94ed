package brokersim

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"brokergate/broker"
)

// RequireBearer verifies the simulator's own access tokens before any
// market data handler runs: signature, expiry, and the jti not having
// been revoked.
func (s *Simulator) RequireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			unauthorized(w)
			return
		}

		parsed, err := jwt.Parse(raw, s.signer.Keyfunc, jwt.WithTimeFunc(s.nowTime))
		if err != nil || !parsed.Valid {
			unauthorized(w)
			return
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(w)
			return
		}
		if jti, _ := claims["jti"].(string); jti == "" || s.revoked.IsRevoked(jti) {
			unauthorized(w)
			return
		}

		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	writeJSONError(w, "invalid_token", http.StatusUnauthorized)
}

func (s *Simulator) AccountsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []broker.Account{
			{ID: "acc-1001", Name: "Main Trading", Currency: "USD", Cash: 2500.50, Equity: 10400.25},
			{ID: "acc-1002", Name: "Long Term ISA", Currency: "GBP", Cash: 810.00, Equity: 23119.60},
		})
	}
}

// basePrices seeds the quote synthesizer for familiar tickers; anything
// else trades at a flat hundred.
var basePrices = map[string]float64{
	"AAPL": 189.12,
	"MSFT": 410.11,
	"GOOG": 170.44,
	"TSLA": 251.33,
	"AMZN": 186.90,
	"VOD":  72.56,
}

func (s *Simulator) QuotesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("symbols")
		if strings.TrimSpace(raw) == "" {
			writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
			return
		}

		asOf := s.nowTime()
		quotes := make([]broker.Quote, 0)
		for _, symbol := range strings.Split(raw, ",") {
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			if symbol == "" {
				continue
			}
			base, known := basePrices[symbol]
			if !known {
				base = 100.00
			}
			quotes = append(quotes, broker.Quote{
				Symbol: symbol,
				Bid:    base - 0.02,
				Ask:    base + 0.02,
				Last:   base,
				AsOf:   asOf,
			})
		}
		writeJSON(w, http.StatusOK, quotes)
	}
}

func (s *Simulator) OrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		now := s.nowTime()
		writeJSON(w, http.StatusOK, []broker.Order{
			{
				ID:        "ord-5001",
				AccountID: "acc-1001",
				Symbol:    "AAPL",
				Side:      "buy",
				Quantity:  10,
				Status:    "filled",
				PlacedAt:  now.Add(-26 * time.Hour),
			},
			{
				ID:         "ord-5002",
				AccountID:  "acc-1001",
				Symbol:     "MSFT",
				Side:       "sell",
				Quantity:   5,
				LimitPrice: 412.50,
				Status:     "working",
				PlacedAt:   now.Add(-45 * time.Minute),
			},
		})
	}
}
