package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"lifai-relay/config"
	"lifai-relay/handlers"
	"lifai-relay/middleware"
	"lifai-relay/models"
	"lifai-relay/services"
	"lifai-relay/utils"
	"lifai-relay/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg.Production); err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer func() { _ = zap.L().Sync() }()

	if !cfg.EnvFileLoaded {
		zap.L().Warn("⚠️  No .env file found, reading environment variables directly")
	}

	if cfg.DatabaseURL == "" {
		zap.L().Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zap.L().Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		zap.L().Fatal("failed to migrate database", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.LedgerTimezone)
	if err != nil {
		zap.L().Warn("⚠️ invalid LEDGER_TIMEZONE, using UTC", zap.String("tz", cfg.LedgerTimezone), zap.Error(err))
		loc = time.UTC
	}

	var bonus services.BonusRateProvider = services.NormalRateOnly{}
	if len(cfg.BonusEPReferrers) > 0 {
		bonus = services.NewStaticBonusList(cfg.BonusEPReferrers)
	}

	rateOverrides, err := services.ParseInitialRates(cfg.InitialRates)
	if err != nil {
		zap.L().Fatal("invalid REFERRAL_INITIAL_RATES", zap.Error(err))
	}
	rates, err := services.DefaultRateTable().WithInitialRates(rateOverrides)
	if err != nil {
		zap.L().Fatal("invalid REFERRAL_INITIAL_RATES", zap.Error(err))
	}

	stores := services.NewGormStores(db)
	ledger := services.NewLedgerService(stores, rates, bonus, loc)

	gas := services.NewGASClient(cfg.GASWebAppURL, cfg.GASAPIKey, cfg.GASAdminKey, cfg.GASTimeout)
	nowPayments := services.NewNowPaymentsClient(cfg.NowPaymentsBaseURL, cfg.NowPaymentsAPIKey)

	var archive services.Archiver
	if cfg.R2Enabled() {
		r2, err := utils.InitR2(cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2Bucket)
		if err != nil {
			zap.L().Fatal("failed to initialize R2 client", zap.Error(err))
		}
		archive = r2
	}

	applySvc := services.NewApplyRelayService(gas, ledger)
	statusSvc := services.NewStatusService(gas, stores)
	webhookSvc := services.NewPaymentWebhookService(cfg.NowPaymentsIPNSecret, gas, ledger, stores, archive, cfg.AutoApproveOnPayment)
	invoiceSvc := services.NewInvoiceService(nowPayments, cfg.SiteURL)
	adminSvc := services.NewAdminService(gas, ledger)
	accountSvc := services.NewAccountService(gas)

	missingGAS := gas.Missing(true)
	if len(missingGAS) > 0 {
		zap.L().Warn("⚠️ backend variables not set, affected routes will answer env_missing", zap.Strings("missing", missingGAS))
	}
	if cfg.NowPaymentsIPNSecret == "" {
		zap.L().Warn("⚠️ NOWPAYMENTS_IPN_SECRET not set, IPN deliveries will be refused")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContextMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID, Cache-Control",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400,
	}))

	limiter := middleware.RateLimitMiddleware(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	adminAuth := middleware.AdminTokenMiddleware(cfg.AdminDashboardToken)

	handlers.SetupApplyRoutes(app, applySvc, statusSvc, limiter)
	handlers.SetupNowPaymentsRoutes(app, webhookSvc, invoiceSvc, limiter)
	handlers.SetupAdminRoutes(app, adminSvc, cfg, adminAuth)
	handlers.SetupAccountRoutes(app, accountSvc, limiter)
	handlers.SetupLedgerRoutes(app, ledger, adminAuth)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewApplicationSyncWorker(gas, ledger, cfg.StatusSyncInterval)
	if len(missingGAS) == 0 {
		syncWorker.Start(ctx)
	}

	sched, err := services.StartMaintenanceScheduler(ctx, webhookSvc, ledger)
	if err != nil {
		zap.L().Fatal("failed to start scheduler", zap.Error(err))
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zap.L().Error("Server error", zap.Error(err))
		}
	}()

	zap.L().Info("✅ Server running", zap.String("port", cfg.Port))
	zap.L().Info("✅ Ledger period timezone", zap.String("tz", loc.String()))
	zap.L().Info("✅ CORS configured", zap.Strings("origins", cfg.AllowedOrigins))

	<-ctx.Done()
	zap.L().Info("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		zap.L().Warn("scheduler shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}
