package authserver

// Route path constants
const (
	RouteLogin    = "/auth/login"
	RouteRegister = "/users/register"
	RouteRefresh  = "/auth/refresh"
	RouteMe       = "/auth/me"

	// RouteEcho is a protected endpoint that echoes the request body
	RouteEcho = "/api/echo"
)
