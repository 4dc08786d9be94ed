package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth API routes (the contract with the web front end)
	RouteAuthAuthorize = "/api/auth/authorize"
	RouteAuthCallback  = "/api/auth/callback"
	RouteAuthRefresh   = "/api/auth/refresh"
	RouteAuthLogout    = "/api/auth/logout"
	RouteAuthStatus    = "/api/auth/status"

	// Trading API routes (read-only pass-through to the brokerage)
	RouteTradingAccounts = "/api/trading/accounts"
	RouteTradingQuotes   = "/api/trading/quotes"
	RouteTradingOrders   = "/api/trading/orders"
)
