package server

import "net/http"

func (s *Server) initRoutes() {
	loginPath := s.config.GetLoginPath()

	s.RegisterRouteFunc("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleware()...))

	s.RegisterRouteFunc("GET "+loginPath, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+loginPath, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))

	s.RegisterRouteFunc("GET "+s.config.GetDashboardPath(), ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleware()...))

	// Everything else still goes through the guard so unknown protected paths bounce to login
	s.RegisterRouteFunc("/", ChainMiddleware(http.NotFound, s.HTMLMiddleware()...))
}
