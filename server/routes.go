package server

import "net/http"

func (s *Server) initRoutes() {
	// Method-specific patterns never match OPTIONS, so preflights get one
	// catch-all route where CorsMiddleware answers before this handler runs.
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	// Auth flow (contract with the web front end)
	s.RegisterRouteHandler("GET "+RouteAuthAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthStatus, ChainMiddleware(s.StatusHandler(), s.APIMiddleware()...))

	// Trading pass-through (gated per request)
	s.RegisterRouteHandler("GET "+RouteTradingAccounts, ChainMiddleware(s.AccountsHandler(), s.TradingMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteTradingQuotes, ChainMiddleware(s.QuotesHandler(), s.TradingMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteTradingOrders, ChainMiddleware(s.OrdersHandler(), s.TradingMiddleware()...))
}
