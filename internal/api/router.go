package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/api/handler"
	"github.com/jeanElossy/api-paynoval-sub000/internal/api/middleware"
	"github.com/jeanElossy/api-paynoval-sub000/internal/api/spec"
	"github.com/jeanElossy/api-paynoval-sub000/internal/config"
	"github.com/jeanElossy/api-paynoval-sub000/internal/idempotency"
	"github.com/jeanElossy/api-paynoval-sub000/internal/ledger"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	balances  *repository.BalanceStore
	ledgerSt  *repository.LedgerStore
	svc       *ledger.Service
	idemStore *idempotency.Store
	redis     redis.Cmdable
}

func NewRouter(cfg *config.Config, logger *zap.Logger, balances *repository.BalanceStore, ledgerStore *repository.LedgerStore, svc *ledger.Service, idemStore *idempotency.Store, redisClient redis.Cmdable) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		balances:  balances,
		ledgerSt:  ledgerStore,
		svc:       svc,
		idemStore: idemStore,
		redis:     redisClient,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(chiMiddleware.RealIP)

	authHandler := handler.NewAuthHandler(api.balances)
	accountHandler := handler.NewAccountHandler(api.balances)
	transactionHandler := handler.NewTransactionHandler(api.svc)
	internalHandler := handler.NewInternalPaymentHandler(api.svc)
	adminHandler := handler.NewAdminHandler(api.svc)
	notificationHandler := handler.NewNotificationHandler(api.ledgerSt)
	healthHandler := handler.NewHealthHandler(api.balances.Pool(), api.ledgerSt.Pool(), api.redis)

	// Operational surface
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/docs/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/users", accountHandler.CreateUser)
	})

	// Authenticated user routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/me", accountHandler.Me)
		r.Get("/v1/balance", accountHandler.Balance)

		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/transactions/initiate", transactionHandler.Initiate)
		r.Post("/v1/transactions/confirm", transactionHandler.Confirm)
		r.Post("/v1/transactions/cancel", transactionHandler.Cancel)
		r.Get("/v1/transactions/{id}", transactionHandler.Get)

		r.Get("/v1/notifications", notificationHandler.List)
		r.Post("/v1/notifications/{id}/read", notificationHandler.MarkRead)
	})

	// Service-to-service routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.InternalAuth(api.cfg.InternalToken))
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/internal-payments", internalHandler.Execute)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RequireRole("admin"))

		r.Get("/v1/admin/transactions", adminHandler.List)
		r.Get("/v1/admin/transactions/{id}", adminHandler.Get)
		r.Post("/v1/admin/transactions/{id}/refund", adminHandler.Refund)
		r.Post("/v1/admin/transactions/{id}/validate", adminHandler.Validate)
		r.Post("/v1/admin/transactions/{id}/reassign", adminHandler.Reassign)
		r.Post("/v1/admin/transactions/{id}/archive", adminHandler.Archive)
		r.Post("/v1/admin/transactions/{id}/flag", adminHandler.Flag)
		r.Post("/v1/admin/transactions/{id}/relaunch", adminHandler.Relaunch)
		r.Post("/v1/admin/transactions/{id}/cancel", adminHandler.Cancel)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.RespondError(w, req, http.StatusNotFound, "request/unknown-route", "route not found")
	})

	return r
}
