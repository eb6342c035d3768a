package remote

// Authentication service endpoints
const (
	RouteLogin    = "/auth/login"
	RouteRegister = "/users/register"
	RouteRefresh  = "/auth/refresh"
	RouteMe       = "/auth/me"
)

// PublicRoutes never carry a credential and never trigger a refresh
func PublicRoutes() []string {
	return []string{RouteLogin, RouteRegister, RouteRefresh}
}
