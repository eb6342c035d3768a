package authserver

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const issuer = "go-auth-client-devserver"

// Server is a small authentication service for local development and tests.
// It issues HS256 access tokens and single-use rotating refresh tokens.
type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	logger zerolog.Logger

	users   *userRepo
	access  *accessTokens
	refresh *refreshTokens

	// knobs for exercising client recovery
	generation    atomic.Int64
	refreshCalls  atomic.Int64
	failRefresh   atomic.Bool
	refreshDelay  time.Duration
	refreshDelayL sync.RWMutex
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithAccessTokenExpiry(d time.Duration) Option {
	return func(s *Server) { s.access.expiry = d }
}

func WithRefreshDelay(d time.Duration) Option {
	return func(s *Server) { s.refreshDelay = d }
}

func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		logger: log.Logger,
		users:  newUserRepo(),
		access: &accessTokens{
			issuer: issuer,
			secret: []byte(cfg.GetSigningSecret()),
			expiry: cfg.GetAccessTokenExpiry(),
		},
		refresh: newRefreshTokens(cfg.GetRefreshTokenLength(), cfg.GetRefreshTokenExpiry()),
	}
	if ec, ok := cfg.(config.EnvConfig); ok {
		s.env = ec.GetEnv()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	std := []func(http.HandlerFunc) http.HandlerFunc{s.RecoverMiddleware, s.LoggingMiddleware}
	protected := append(std, s.RequireAuth())

	s.registerRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), std...))
	s.registerRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), std...))
	s.registerRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), std...))
	s.registerRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), protected...))
	s.registerRouteFunc("POST "+RouteEcho, ChainMiddleware(s.EchoHandler(), protected...))
}

func (s *Server) registerRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, _ := strings.Cut(route, " ")
		s.logger.Info().Str("method", method).Str("path", path).Msg("route registered")
	}
}

// ExpireAccessTokens revokes every access token issued so far
func (s *Server) ExpireAccessTokens() {
	s.generation.Add(1)
}

// RevokeRefreshTokens invalidates every outstanding refresh token
func (s *Server) RevokeRefreshTokens() {
	s.refresh.RevokeAll()
}

// FailRefresh makes the refresh endpoint answer 401 while set
func (s *Server) FailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

// SetRefreshDelay holds every refresh response for d
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelayL.Lock()
	defer s.refreshDelayL.Unlock()
	s.refreshDelay = d
}

// RefreshCalls is the number of requests the refresh endpoint has received
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// CreateUser registers a user directly, bypassing the HTTP API
func (s *Server) CreateUser(email, name, password string) (*User, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	return s.users.Create(email, name, password)
}
