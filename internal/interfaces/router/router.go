package router

import (
	"stocktransfer-backend/internal/app"
	healthsvc "stocktransfer-backend/internal/application/health"
	"stocktransfer-backend/internal/config"
	"stocktransfer-backend/internal/constants"
	audithandler "stocktransfer-backend/internal/interfaces/handlers/auditlogs"
	healthhandler "stocktransfer-backend/internal/interfaces/handlers/health"
	holdhandler "stocktransfer-backend/internal/interfaces/handlers/holdings"
	invhandler "stocktransfer-backend/internal/interfaces/handlers/invitations"
	issuehandler "stocktransfer-backend/internal/interfaces/handlers/issuances"
	payhandler "stocktransfer-backend/internal/interfaces/handlers/payments"
	transferhandler "stocktransfer-backend/internal/interfaces/handlers/transfers"
	"stocktransfer-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with global middleware and every route.
// Without a database only the health routes are mounted.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	fapp := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		if rdb, err = middleware.NewRedis(cfg.RedisURL); err != nil {
			return nil, nil, nil, err
		}
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = app.OpenStore(cfg); err != nil {
			return nil, nil, nil, err
		}
	}

	fapp.Use(middleware.Tracing())
	fapp.Use(middleware.HealthMarker(rdb))
	fapp.Use(middleware.RouteLogger())

	collector := &healthsvc.Collector{Rdb: rdb}
	if cfg.PaymentConfigured() {
		collector.Probes = append(collector.Probes, healthsvc.StripeProbe)
	}
	if cfg.PortalBaseURL != "" {
		collector.Probes = append(collector.Probes, healthsvc.Probe{Name: "portal", URL: cfg.PortalBaseURL})
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			collector.DB = sqlDB
		}
	}
	hh := &healthhandler.Handlers{Collector: collector, HealthAdminKey: cfg.HealthAdminKey}
	fapp.Get("/", hh.Dashboard)
	fapp.Get("/reset", hh.Reset)
	fapp.Get("/health/json", hh.JSON)
	fapp.Get("/health/errors", hh.Errors)

	if db == nil {
		return fapp, nil, rdb, nil
	}
	svcs := app.NewServices(cfg, db)

	// Stripe posts without a session; the signature authenticates it.
	wh := &payhandler.WebhookHandler{Issuance: svcs.Issuance, WebhookSecret: cfg.StripeWebhookSecret}
	fapp.Post("/api/v1/stripe/webhook", wh.HandleWebhook)

	ih := &invhandler.Handlers{DB: db, Signer: svcs.Invites}
	public := fapp.Group("/api/v1/invitations/public",
		middleware.CORS(middleware.PublicCORS(cfg.FrontendURLEndsWith, cfg.Development(), cfg.CORSMaxAge)))
	public.Post("/check-token", ih.CheckToken)

	fapp.Use("/api/v1", middleware.CORS(middleware.PortalCORS(cfg.FrontendURLEndsWith, cfg.DevPassword, cfg.Development(), cfg.CORSMaxAge)))
	fapp.Use(middleware.Session(rdb))
	authed := middleware.RequireAuth()
	can := middleware.AuthorizePermission

	issh := &issuehandler.Handlers{Service: svcs.Issuance}
	isg := fapp.Group("/api/v1/issuances", authed)
	isg.Post("/", can(constants.IssueShares), issh.Issue)
	isg.Get("/expired", can(constants.IssueShares), issh.Expired)
	isg.Get("/:id", can(constants.ViewLedger), issh.Get)

	th := &transferhandler.Handlers{Service: svcs.Transfers}
	tg := fapp.Group("/api/v1/transfers", authed)
	tg.Post("/", can(constants.RequestTransfer), th.Create)
	tg.Get("/:id", can(constants.ViewLedger), th.Get)
	tg.Post("/:id/approve", can(constants.ReviewTransfer), th.Approve)
	tg.Post("/:id/reject", can(constants.ReviewTransfer), th.Reject)
	tg.Post("/:id/cancel", can(constants.RequestTransfer), th.Cancel)
	tg.Post("/:id/execute", can(constants.ExecuteTransfer), th.Execute)

	hdh := &holdhandler.Handlers{Service: svcs.Holdings}
	hg := fapp.Group("/api/v1/holdings", authed)
	hg.Get("/", can(constants.ViewLedger), hdh.List)
	hg.Get("/:id", can(constants.ViewLedger), hdh.Get)
	hg.Post("/:id/release", can(constants.ReleaseHoldings), hdh.Release)

	ah := &audithandler.Handlers{Recorder: svcs.Audit}
	fapp.Get("/api/v1/audit-logs", authed, can(constants.ViewAuditLog), ah.List)

	return fapp, db, rdb, nil
}
