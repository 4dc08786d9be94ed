package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"brokergate/auth"
	"brokergate/broker"
	"brokergate/internal/config"
	"brokergate/internal/errors"
)

// TradingClient is the read-only brokerage data surface the trading
// handlers proxy to.
type TradingClient interface {
	Accounts(ctx context.Context, accessToken string) ([]broker.Account, error)
	Quotes(ctx context.Context, accessToken string, symbols []string) ([]broker.Quote, error)
	Orders(ctx context.Context, accessToken string) ([]broker.Order, error)
}

var _ TradingClient = (*broker.APIClient)(nil)

// Server is the HTTP surface of the proxy: the auth endpoints the front
// end drives the flow through and the gated trading pass-through. All
// brokerage access goes through the AuthorizationService; handlers never
// see a refresh token.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     *auth.AuthorizationService
	trading  TradingClient
	sessions *SessionManager
	closers  []func() error
}

func New(config config.Config, authService *auth.AuthorizationService, trading TradingClient, sessions *SessionManager) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if authService == nil {
		return nil, errors.New("[Server New] authorization service is required")
	}
	if trading == nil {
		return nil, errors.New("[Server New] trading client is required")
	}
	if sessions == nil {
		return nil, errors.New("[Server New] session manager is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		auth:     authService,
		trading:  trading,
		sessions: sessions,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close releases backing resources (durable token store connections, the
// attempt sweep). Safe to call once after the HTTP server has shut down.
func (s *Server) Close() error {
	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
