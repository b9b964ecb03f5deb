package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Sessions
	RouteRegister  = "/auth/register"
	RouteLogin     = "/auth/login"
	RouteRefresh   = "/auth/refresh"
	RouteLogout    = "/auth/logout"
	RouteLogoutAll = "/auth/logout-all"

	// Auth Routes - Email Verification
	RouteVerifyEmail        = "/auth/verify-email"
	RouteResendVerification = "/auth/verify-email/resend"

	// Auth Routes - Password Management
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"
	RouteChangePassword = "/auth/change-password"

	// Auth Routes - Current User
	RouteMe = "/auth/me"

	// Operational Routes
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
