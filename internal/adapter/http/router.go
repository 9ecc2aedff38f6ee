package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/entryledger/internal/adapter/http/handler"
	"github.com/iho/entryledger/internal/adapter/http/middleware"
	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/metrics"
	"github.com/iho/entryledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	LedgerHandler      *handler.LedgerHandler
	HealthHandler      *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration

	// TokenVerifier enables bearer authentication when set.
	TokenVerifier middleware.TokenVerifier

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	RateLimiter    *middleware.RateLimiter
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	requireRole := func(domain.Role) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.TokenVerifier != nil {
		requireRole = middleware.RequireRole
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.Authenticate(cfg.TokenVerifier))
		}

		// Runs after authentication so keys are scoped to the caller.
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.With(requireRole(domain.RoleOperator)).Post("/", cfg.AccountHandler.Create)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleViewer))
				r.Get("/", cfg.AccountHandler.List)
				r.Get("/{id}", cfg.AccountHandler.Get)
				r.Get("/{id}/balance", cfg.AccountHandler.Balance)
				r.Get("/{id}/ledger", cfg.AccountHandler.Ledger)
				r.Get("/{id}/transactions", cfg.TransactionHandler.ListByAccount)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleAdmin))
				r.Post("/{id}/freeze", cfg.AccountHandler.Freeze)
				r.Post("/{id}/unfreeze", cfg.AccountHandler.Unfreeze)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleOperator))
			r.Post("/deposits", cfg.TransactionHandler.Deposit)
			r.Post("/withdrawals", cfg.TransactionHandler.Withdraw)
			r.Post("/transfers", cfg.TransactionHandler.Transfer)
		})

		r.With(requireRole(domain.RoleViewer)).Get("/transactions/{id}", cfg.TransactionHandler.Get)
		r.With(requireRole(domain.RoleViewer)).Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
	})

	return r
}
