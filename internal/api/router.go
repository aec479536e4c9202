package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/presetstudio/entitlements/docs"
	"github.com/presetstudio/entitlements/internal/api/handler"
	"github.com/presetstudio/entitlements/internal/api/middleware"
	"github.com/presetstudio/entitlements/internal/core/service"
	"github.com/presetstudio/entitlements/internal/infrastructure/config"
	mongodb "github.com/presetstudio/entitlements/internal/infrastructure/db/mongo"
	redisdb "github.com/presetstudio/entitlements/internal/infrastructure/db/redis"
)

// Dependencies wires the engine together once and hands the shared pieces to
// callers that live outside the router (the billing dispatcher, mainly).
type Dependencies struct {
	Entitlements  *service.EntitlementPolicyService
	Subscriptions *service.SubscriptionLifecycleService
	Sessions      *service.JWTSessionService
	Auth          *service.AuthService
	Principals    *mongodb.MongoPrincipalRepository
	Audit         *mongodb.MongoAuditRepository
}

// BuildDependencies constructs the service graph from storage handles.
func BuildDependencies(cfg *config.Config, db *mongo.Database, rdb *redis.Client, log zerolog.Logger) *Dependencies {
	principals := mongodb.NewPrincipalRepository(db)
	audit := mongodb.NewAuditRepository(db)
	sessionStore := redisdb.NewSessionStore(rdb)
	anonQuota := redisdb.NewAnonymousQuotaStore(rdb)

	sessions := service.NewJWTSessionService(sessionStore, cfg.JWTSecret, cfg.SessionTTL)
	meter := service.NewUsageMeterService(principals, log)
	entitlements := service.NewEntitlementPolicyService(sessions, principals, anonQuota, meter, log)
	subscriptions := service.NewSubscriptionLifecycleService(principals, log)
	auth := service.NewAuthService(principals, sessions)

	return &Dependencies{
		Entitlements:  entitlements,
		Subscriptions: subscriptions,
		Sessions:      sessions,
		Auth:          auth,
		Principals:    principals,
		Audit:         audit,
	}
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg *config.Config, deps *Dependencies, dispatcher handler.BillingDispatcher, db *mongo.Database, rdb *redis.Client, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("entitlement"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	entitlementHandler := handler.NewEntitlementHandler(deps.Entitlements)
	subscriptionHandler := handler.NewSubscriptionHandler(deps.Subscriptions)
	billingHandler := handler.NewBillingHandler(dispatcher)
	adminHandler := handler.NewAdminHandler(deps.Principals, deps.Audit, log)

	sessionMW := middleware.Session(deps.Sessions)
	adminMW := middleware.AdminKey(cfg.AdminAPIKey)

	// --- Auth routes ---
	e.POST("/auth/signup", authHandler.Signup)
	e.POST("/auth/verify", authHandler.Verify)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)

	// --- Entitlement routes (anonymous callers welcome) ---
	e.POST("/v1/entitlement/check", entitlementHandler.Check)
	e.POST("/v1/entitlement/consume", entitlementHandler.Consume)
	e.GET("/v1/me/usage", entitlementHandler.Usage, sessionMW)

	// --- Subscription routes ---
	e.POST("/v1/subscription/upgrade", subscriptionHandler.Upgrade, sessionMW)
	e.POST("/v1/subscription/cancel", subscriptionHandler.Cancel, sessionMW)

	// --- Billing ingress (async, per-subscription ordering) ---
	e.POST("/v1/billing/events", billingHandler.Receive)

	// --- Admin (audited, key-guarded) ---
	e.POST("/v1/admin/principals/:id/tier", adminHandler.OverrideTier, adminMW)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability and docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
