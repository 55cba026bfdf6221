// Package api assembles the HTTP surface: public probes, authenticated
// transaction routes, and the switch-facing webhook endpoints.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/api/handler"
	"github.com/AlisonTamayo/BancoArcbank/internal/api/middleware"
	"github.com/AlisonTamayo/BancoArcbank/internal/api/spec"
	"github.com/AlisonTamayo/BancoArcbank/internal/config"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *pgxpool.Pool
	Redis       redis.Cmdable
	Coordinator handler.TransactionService
	Inbound     handler.InboundService
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(d.Logger))
	r.Use(middleware.LoggingMiddleware(d.Logger))
	r.Use(middleware.MetricsMiddleware)

	auth := middleware.NewAuthenticator(d.Config.JWTSecret, d.Config.JWTIssuer, d.Config.JWTAudience)

	healthHandler := handler.NewHealthHandler(d.DB, d.Redis)
	txnHandler := handler.NewTransactionHandler(d.Coordinator)
	webhookHandler := handler.NewWebhookHandler(d.Inbound, d.Config.WebhookHMACKey, d.Config.WebhookSkipSignature)

	// Public routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(d.Config.PublicRateLimitRPS))

		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())

		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/openapi.yaml"),
		))
	})

	// Switch-facing webhooks, authenticated by HMAC signature.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(d.Config.PublicRateLimitRPS))

		r.Post("/v1/webhooks/switch/transfers", webhookHandler.HandleInboundTransfer)
		r.Post("/v1/webhooks/switch/returns", webhookHandler.HandleInboundReversal)
	})

	// Client routes behind JWT.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Use(middleware.AuthRateLimiter(d.Config.AuthRateLimitRPS))

		r.Post("/v1/transactions", txnHandler.Create)
		r.Get("/v1/transactions/{id}", txnHandler.Get)
		r.Post("/v1/transactions/{id}/reversal", txnHandler.Reverse)
		r.Get("/v1/transactions/reference/{reference}/status", txnHandler.StatusByReference)
		r.Get("/v1/accounts/{accountID}/transactions", txnHandler.ListByAccount)
		r.Get("/v1/reference/return-reasons", txnHandler.ReturnReasons)
	})

	return r
}
