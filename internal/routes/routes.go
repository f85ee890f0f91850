package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nightlab/exchange/internal/application"
	"github.com/nightlab/exchange/internal/catalog"
	"github.com/nightlab/exchange/internal/clock"
	"github.com/nightlab/exchange/internal/config"
	"github.com/nightlab/exchange/internal/identity"
	"github.com/nightlab/exchange/internal/initdata"
	"github.com/nightlab/exchange/internal/metrics"
	"github.com/nightlab/exchange/internal/middleware"
	"github.com/nightlab/exchange/internal/notification"
	"github.com/nightlab/exchange/internal/presentation"
	"github.com/nightlab/exchange/internal/ttl"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Optional; defaults are derived from DB and Cache.
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Catalog catalog.Repository
}

// Services exposes what the process needs beyond HTTP.
type Services struct {
	Applications *application.Service
	Metrics      *metrics.Metrics
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(d.Metrics.Middleware())

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", d.Metrics.Handler())

	// Stores
	var (
		identityRepo    identity.Repository
		applicationRepo application.Repository
		inboxRepo       notification.Repository
		catalogRepo     = d.Catalog
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		applicationRepo = application.NewPostgresRepository(d.DB)
		inboxRepo = notification.NewPostgresRepository(d.DB)
		if catalogRepo == nil {
			catalogRepo = catalog.NewPostgresRepository(d.DB)
		}
	} else {
		identityRepo = identity.NewMemoryRepository()
		applicationRepo = application.NewMemoryRepository()
		inboxRepo = notification.NewMemoryRepository()
		if catalogRepo == nil {
			catalogRepo = catalog.NewMemoryRepository()
		}
	}
	if d.Cache != nil {
		catalogRepo = catalog.NewCachedRepository(catalogRepo, d.Cache, d.Cfg.CatalogCacheTTL, d.Logger)
	}

	// Services and handlers
	identitySvc := identity.NewService(identityRepo, d.Clock)
	inboxSvc := notification.NewService(inboxRepo, notification.NewLoggerNotifier(d.Logger), d.Clock, d.Logger)
	applicationSvc := application.NewService(
		applicationRepo,
		catalogRepo,
		ttl.NewPolicy(d.Clock, d.Cfg.RequisitesTTL),
		presentation.NewInbox(inboxSvc, d.Logger),
		d.Metrics,
		d.Logger,
	)
	validator := initdata.NewValidator(d.Cfg.BotToken, initdata.Options{
		AllowBypass: d.Cfg.AuthTestMode,
		MaxAge:      d.Cfg.AuthMaxAge,
		Clock:       d.Clock,
	})
	if d.Cfg.AuthTestMode {
		d.Logger.Warn("init data test bypass is enabled")
	}

	apps := NewApplicationHandler(applicationSvc, catalogRepo, d.Logger)

	api := app.Group("/api")

	// Operator routes
	merchant := api.Group("/merchant", middleware.MerchantKey(d.Cfg.MerchantKeyHash))
	RegisterMerchantRoutes(merchant, apps)

	// Public routes
	RegisterCatalogRoutes(api, catalog.NewHandler(catalogRepo))

	// Protected routes
	protected := api.Group("",
		middleware.AuthFailureLimit(d.Cache, d.Cfg.AuthFailuresPerMinute, d.Logger),
		middleware.InitDataAuth(validator, identitySvc, d.Metrics, d.Logger),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterIdentityRoutes(protected, identity.NewHandler(identitySvc))
	RegisterApplicationRoutes(protected, apps)
	RegisterNotificationRoutes(protected, NewNotificationHandler(inboxSvc))

	return &Services{Applications: applicationSvc, Metrics: d.Metrics}, nil
}
