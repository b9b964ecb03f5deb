package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session-server/auth"
	"github.com/jrsteele09/go-auth-session-server/internal/config"
	"github.com/jrsteele09/go-auth-session-server/token"
	"github.com/jrsteele09/go-auth-session-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether a backing store is reachable
type Pinger func(ctx context.Context) error

// Dependencies holds what the HTTP layer calls into
type Dependencies struct {
	Auth   *auth.Service
	Users  *users.Service
	Tokens *token.Manager
	Checks map[string]Pinger // Named store health checks reported by /health
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	auth      *auth.Service
	users     *users.Service
	tokens    *token.Manager
	checks    map[string]Pinger
	limiter   *IPRateLimiter
	proxies   trustedProxies
	logger    zerolog.Logger
	startedAt time.Time
}

type ServerOption func(*Server)

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimiter replaces the limiter built from configuration
func WithRateLimiter(limiter *IPRateLimiter) ServerOption {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func New(cfg config.Config, deps Dependencies, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Auth == nil || deps.Users == nil || deps.Tokens == nil {
		return nil, errors.New("[Server New] auth, users and token services are required")
	}

	proxies, err := parseTrustedProxies(cfg.GetTrustedProxies())
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] TRUSTED_PROXIES")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		auth:      deps.Auth,
		users:     deps.Users,
		tokens:    deps.Tokens,
		checks:    deps.Checks,
		proxies:   proxies,
		logger:    log.Logger,
		startedAt: time.Now(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.limiter == nil && cfg.GetEnableRateLimiting() {
		s.limiter = NewIPRateLimiter(cfg.GetRateLimitPerMinute(), cfg.GetRateLimitBurst())
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Close stops background work owned by the server
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) isDevelopment() bool {
	return s.env == "DEV"
}

func (s *Server) logRoutes() {
	if !s.isDevelopment() {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
