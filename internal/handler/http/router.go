package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/service"
	"github.com/vidtube/vidtube/pkg/health"
	"github.com/vidtube/vidtube/pkg/middleware"
)

// ServiceName labels metrics and spans produced by the router.
const ServiceName = "vidtube"

// RouterDeps holds everything the router needs.
type RouterDeps struct {
	Sessions       *service.SessionService
	Accounts       *service.AccountService
	Tokens         *auth.TokenIssuer
	Health         *health.Handler
	Cookies        CookieConfig
	CORS           middleware.CORSConfig
	MaxUploadBytes int64
	Registry       *prometheus.Registry
	// AuthRateLimit throttles the public auth endpoints per client IP.
	// A zero RPS disables it.
	AuthRateLimit RateLimitConfig
}

// RateLimitConfig is a token bucket of RPS requests per second with Burst.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(deps.CORS))
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.NewHTTPMetrics(deps.Registry, ServiceName).Middleware)

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	authHandler := NewAuthHandler(deps.Sessions, deps.Cookies, deps.MaxUploadBytes, logger)
	accountHandler := NewAccountHandler(deps.Accounts, deps.MaxUploadBytes, logger)

	verify := func(token string) (*middleware.Principal, error) {
		claims, err := deps.Tokens.VerifyAccess(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{
			AccountID: claims.AccountID,
			Username:  claims.Username,
			Email:     claims.Email,
			FullName:  claims.FullName,
		}, nil
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Group(func(r chi.Router) {
			if deps.AuthRateLimit.RPS > 0 {
				r.Use(middleware.RateLimit(deps.AuthRateLimit.RPS, deps.AuthRateLimit.Burst, logger))
			}

			r.Post("/users/register", authHandler.Register)
			r.With(ContentTypeJSON).Post("/users/login", authHandler.Login)
			r.With(ContentTypeJSON).Post("/users/refresh-token", authHandler.RefreshToken)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(verify, logger))

			r.Post("/users/logout", authHandler.Logout)
			r.With(ContentTypeJSON).Post("/users/change-password", authHandler.ChangePassword)

			r.Get("/users/current-user", accountHandler.CurrentUser)
			r.With(ContentTypeJSON).Patch("/users/update-account", accountHandler.UpdateAccount)
			r.Patch("/users/avatar", accountHandler.UpdateAvatar)
			r.Patch("/users/cover-image", accountHandler.UpdateCoverImage)

			r.Get("/users/channel/{username}", accountHandler.ChannelProfile)
			r.Post("/subscriptions/{channelId}", accountHandler.Subscribe)
			r.Delete("/subscriptions/{channelId}", accountHandler.Unsubscribe)

			r.Get("/users/history", accountHandler.WatchHistory)
			r.Post("/videos/{videoId}/views", accountHandler.RecordView)
		})
	})

	return r
}
