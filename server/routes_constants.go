package server

const (
	RouteIndex          = "/"
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteForgotPassword = "/forgot-password"
	RouteVerifyEmail    = "/verify-email"
	RouteDashboard      = "/dashboard"
	RouteLogout         = "/logout"
)

const contentTypeHTML = "text/html; charset=utf-8"
