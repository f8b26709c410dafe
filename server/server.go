package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/swingsense/api"
	"github.com/jrsteele09/swingsense/authctx"
	"github.com/jrsteele09/swingsense/internal/config"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Deps are the long-lived collaborators the pages are served from.
type Deps struct {
	Auth     *authctx.Provider
	API      *api.Client
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	appName     string
	mux         *http.ServeMux
	routes      []string
	fileServer  http.Handler
	auth        *authctx.Provider
	api         *api.Client
	gatherer    prometheus.Gatherer
	sanitizer   *bluemonday.Policy
	loginLimit  *rate.Limiter
	sessionWait time.Duration
	pages       map[string]*template.Template
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Auth == nil || deps.API == nil {
		return nil, fmt.Errorf("[Server New] auth context and api client are required")
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:         cfg.GetEnv(),
		appName:     cfg.GetAppName(),
		mux:         http.NewServeMux(),
		fileServer:  FileServerHandler(),
		auth:        deps.Auth,
		api:         deps.API,
		gatherer:    gatherer,
		sanitizer:   bluemonday.StrictPolicy(),
		loginLimit:  newLoginLimiter(cfg.GetLoginRateLimit(), cfg.GetLoginRateBurst()),
		sessionWait: cfg.GetSessionCheckTimeout(),
		pages:       pages,
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
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// newLoginLimiter allows perMinute sign-in attempts with the given burst.
// A non-positive limit disables limiting.
func newLoginLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = perMinute
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}
