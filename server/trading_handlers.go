package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"brokergate/internal/errors"
)

// Trading handlers proxy read-only brokerage data to the front end.
// RequireAuthorized has already run the gate, so each handler only pulls
// the access token from the context and forwards the call.

func (s *Server) AccountsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.trading.Accounts(r.Context(), accessTokenFromContext(r.Context()))
		if err != nil {
			s.writeUpstreamError(w, r, err, "Fetching accounts failed")
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func (s *Server) QuotesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbols := splitSymbols(r.URL.Query().Get("symbols"))
		if len(symbols) == 0 {
			writeJSONError(w, "Missing symbols", http.StatusBadRequest)
			return
		}

		quotes, err := s.trading.Quotes(r.Context(), accessTokenFromContext(r.Context()), symbols)
		if err != nil {
			s.writeUpstreamError(w, r, err, "Fetching quotes failed")
			return
		}
		writeJSON(w, http.StatusOK, quotes)
	}
}

func (s *Server) OrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := s.trading.Orders(r.Context(), accessTokenFromContext(r.Context()))
		if err != nil {
			s.writeUpstreamError(w, r, err, "Fetching orders failed")
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// writeUpstreamError maps brokerage data-plane failures: a 401 from
// upstream means the token was revoked out from under us, transport
// failures and upstream 5xx both surface as a bad gateway.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	sessionKey := sessionKeyFromContext(r.Context())
	log.Err(err).Str("sessionKey", sessionKey).Msg(msg)

	switch {
	case errors.Is(err, errors.ErrUnauthenticated):
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, errors.ErrNetwork):
		writeJSONError(w, "Brokerage unreachable", http.StatusBadGateway)
	default:
		writeJSONError(w, "Brokerage error", http.StatusBadGateway)
	}
}

// splitSymbols parses the comma separated symbols query parameter,
// dropping empty entries.
func splitSymbols(raw string) []string {
	var symbols []string
	for _, symbol := range strings.Split(raw, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		symbols = append(symbols, symbol)
	}
	return symbols
}
