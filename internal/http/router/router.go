package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/health"
	"github.com/timber-social/timber-backend/internal/http/handler"
	"github.com/timber-social/timber-backend/internal/http/middleware"
	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/security"
)

const maxRequestBodyBytes = 30 << 10

const (
	RoutePolicyLogin      = "login"
	RoutePolicyRegister   = "register"
	RoutePolicyCode       = "code"
	RoutePolicyRefresh    = "refresh"
	RoutePolicyAdminWrite = "admin_write"
)

// RouteRateLimitPolicies overrides the limiter of a named route group.
type RouteRateLimitPolicies map[string]func(http.Handler) http.Handler

type Dependencies struct {
	AuthHandler                *handler.AuthHandler
	UserHandler                *handler.UserHandler
	AdminHandler               *handler.AdminHandler
	JWTManager                 *security.JWTManager
	CORSOrigins                []string
	AuthRateLimitRPM           int
	PasswordForgotRateLimitRPM int
	APIRateLimitRPM            int
	CodeEmailRateLimit         int
	CodeEmailRateWindow        time.Duration
	GlobalRateLimiter          GlobalRateLimiterFunc
	AuthRateLimiter            AuthRateLimiterFunc
	ForgotRateLimiter          ForgotRateLimiterFunc
	CodeEmailRateLimiter       func(http.Handler) http.Handler
	RouteRateLimitPolicies     RouteRateLimitPolicies
	Readiness                  *health.ProbeRunner
	EnableOTelHTTP             bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type ForgotRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(maxRequestBodyBytes))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	forgotLimiter := dep.ForgotRateLimiter
	if forgotLimiter == nil {
		forgotLimiter = middleware.NewRateLimiter(dep.PasswordForgotRateLimitRPM, time.Minute, "code").Middleware()
	}
	emailLimiter := dep.CodeEmailRateLimiter
	if emailLimiter == nil {
		emailLimiter = middleware.NewEmailRateLimiter(middleware.NewMemoryFixedWindowLimiter(),
			dep.CodeEmailRateLimit, dep.CodeEmailRateWindow, middleware.FailClosed).Middleware()
	}
	policy := func(name string, fallback func(http.Handler) http.Handler) func(http.Handler) http.Handler {
		if mw, ok := dep.RouteRateLimitPolicies[name]; ok && mw != nil {
			return mw
		}
		return fallback
	}
	authorize := middleware.Authorize(dep.JWTManager)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(policy(RoutePolicyRegister, authLimiter)).Post("/register", dep.AuthHandler.Register)
			r.With(policy(RoutePolicyRegister, authLimiter), emailLimiter).Post("/verify", dep.AuthHandler.Verify)
			r.With(policy(RoutePolicyLogin, authLimiter)).Post("/login", dep.AuthHandler.Login)
			r.With(policy(RoutePolicyCode, forgotLimiter), emailLimiter).Post("/resend-verification", dep.AuthHandler.ResendVerification)
			r.With(policy(RoutePolicyCode, forgotLimiter), emailLimiter).Post("/forgot", dep.AuthHandler.ForgotPassword)
			r.With(policy(RoutePolicyCode, forgotLimiter), emailLimiter).Post("/forgot-password", dep.AuthHandler.ForgotPassword)
			r.With(policy(RoutePolicyCode, authLimiter), emailLimiter).Post("/check-verification-code", dep.AuthHandler.CheckVerificationCode)
			r.With(policy(RoutePolicyCode, authLimiter), emailLimiter).Post("/reset-password", dep.AuthHandler.ResetPassword)
			r.With(policy(RoutePolicyRefresh, authLimiter)).Post("/refresh-token", dep.AuthHandler.Refresh)
			r.Post("/logout", dep.AuthHandler.Logout)
		})

		r.With(authorize).Get("/me", dep.UserHandler.Me)
		r.Route("/users", func(r chi.Router) {
			r.With(authorize).Put("/profile", dep.UserHandler.UpdateProfile)
			r.With(middleware.OptionalAuthorize(dep.JWTManager)).Get("/{username}", dep.UserHandler.Profile)
			r.Group(func(r chi.Router) {
				r.Use(authorize)
				r.Post("/{id}/follow", dep.UserHandler.Follow)
				r.Delete("/{id}/unfollow", dep.UserHandler.Unfollow)
				r.Get("/{id}/followers", dep.UserHandler.Followers)
				r.Get("/{id}/following", dep.UserHandler.Following)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authorize)
			r.Use(middleware.RequireRoles(domain.RoleAdmin))
			r.Get("/users", dep.AdminHandler.ListUsers)
			r.With(policy(RoutePolicyAdminWrite, passthrough)).Patch("/users/{id}/suspend", dep.AdminHandler.Suspend)
			r.With(policy(RoutePolicyAdminWrite, passthrough)).Patch("/users/{id}/reactivate", dep.AdminHandler.Reactivate)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }
