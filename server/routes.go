package server

import (
	"net/http"

	"github.com/jrsteele09/swingsense/guard"
)

// Route path constants
const (
	RouteIndex     = "/"
	RouteLogin     = "/login"
	RouteLogout    = "/logout"
	RouteLogs      = "/logs"
	RoutePlans     = "/plans"
	RouteResources = "/resources"
	RouteProgress  = "/progress"
	RouteProfile   = "/profile"
	RouteMetrics   = "/metrics"
	RouteHealth    = "/healthz"
	RouteStatic    = "/static/"

	// Where a successful sign-in lands without a "next" parameter.
	RouteAfterLogin = RouteLogs
)

func (s *Server) initRoutes() {
	public := s.HTMLMiddleWare()
	protected := s.HTMLMiddleWare(guard.Middleware(s.auth, RouteLogin, s.sessionWait))

	s.RegisterRouteFunc("GET /{$}", ChainMiddleware(s.IndexHandler(), public...))

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), public...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), append(public, s.LoginRateLimitMiddleware)...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), public...))

	// Pages behind the route guard
	s.RegisterRouteFunc("GET "+RouteLogs, ChainMiddleware(s.LogsPageHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteLogs, ChainMiddleware(s.AskQuestionHandler(), protected...))
	s.RegisterRouteFunc("GET "+RoutePlans, ChainMiddleware(s.PlansPageHandler(), protected...))
	s.RegisterRouteFunc("POST "+RoutePlans, ChainMiddleware(s.GeneratePlanHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteResources, ChainMiddleware(s.ResourcesPageHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteProgress, ChainMiddleware(s.ProgressPageHandler(), protected...))
	s.RegisterRouteFunc("POST "+RouteProgress, ChainMiddleware(s.RecordProgressHandler(), protected...))
	s.RegisterRouteFunc("GET "+RouteProfile, ChainMiddleware(s.ProfilePageHandler(), protected...))

	// System
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.MetricsHandler())
	s.RegisterRouteFunc("GET "+RouteStatic, ChainMiddleware(http.StripPrefix(RouteStatic, s.fileServer).ServeHTTP, s.CacheMiddleware))
}
