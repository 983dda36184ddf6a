package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/boards"
	"github.com/bhavnindersingh/RecipeManager/internal/config"
	"github.com/bhavnindersingh/RecipeManager/internal/dashboard"
	"github.com/bhavnindersingh/RecipeManager/internal/database"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/jobs"
	"github.com/bhavnindersingh/RecipeManager/internal/logger"
	"github.com/bhavnindersingh/RecipeManager/internal/metrics"
	"github.com/bhavnindersingh/RecipeManager/internal/orders"
	"github.com/bhavnindersingh/RecipeManager/internal/payments"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/bhavnindersingh/RecipeManager/internal/recipes"
	"github.com/bhavnindersingh/RecipeManager/internal/storage"
	"github.com/bhavnindersingh/RecipeManager/internal/tables"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

const limiterIdle = 10 * time.Minute

// services is everything the route table needs.
type services struct {
	auth        *auth.Service
	audit       *audit.Service
	ingredients *inventory.IngredientService
	stock       *inventory.StockService
	recipes     *recipes.Service
	tables      *tables.Service
	orders      *orders.Service
	payments    *payments.Service
	dashboard   *dashboard.Service
	metrics     *metrics.Metrics
}

func main() {
	cfg := config.Load()

	zl, err := logger.New(logger.ConfigFor(cfg.AppEnv, cfg.LogLevel))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}
	for _, w := range cfg.Warnings() {
		if cfg.IsProduction() {
			zl.Warn(w)
		} else {
			zl.Debug(w)
		}
	}

	db, err := database.Open(cfg, zl)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hub := realtime.NewHub(zl.Named("realtime"), m.RealtimeEvents, m.RealtimeDropped)

	var (
		pub      realtime.Publisher = hub
		sessions auth.SessionStore  = auth.NewMemorySessions()
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zl.Fatal("parse REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Fatal("connect redis", zap.Error(err))
		}
		broker := realtime.NewRedisBroker(rdb, hub, zl.Named("realtime"))
		pub = broker
		sessions = auth.NewRedisSessions(rdb)
		go func() {
			if err := broker.Run(ctx); err != nil {
				zl.Error("realtime broker stopped", zap.Error(err))
			}
		}()
		zl.Info("sessions and change feed on redis")
	}

	images, err := storage.NewDisk(cfg.RecipeImagePath, cfg.PublicBaseURL+storage.URLPrefix, cfg.MaxUploadBytes, zl)
	if err != nil {
		zl.Fatal("init image storage", zap.Error(err))
	}

	limiter := auth.NewPinLimiter(cfg.PinAttemptsPerMinute, cfg.PinBurst)
	auditSvc := audit.NewService(db, zl)
	ordersSvc := orders.NewService(orders.NewStore(db), pub, auditSvc, m.OrdersCreated, zl)
	tablesSvc := tables.NewService(tables.NewStore(db), pub, auditSvc, zl)
	stockSvc := inventory.NewStockService(inventory.NewStockStore(db), pub, auditSvc, m.StockTransactions, zl)
	svc := services{
		auth: auth.NewService(auth.NewUserStore(db), sessions, auth.Options{
			Secret:     cfg.JWTSecret,
			SessionTTL: cfg.SessionTTL,
			Limiter:    limiter,
			Failures:   m.PinFailures,
		}, zl),
		audit:       auditSvc,
		ingredients: inventory.NewIngredientService(inventory.NewIngredientStore(db), pub, auditSvc, zl),
		stock:       stockSvc,
		recipes:     recipes.NewService(recipes.NewStore(db), images, pub, auditSvc, zl),
		tables:      tablesSvc,
		orders:      ordersSvc,
		payments:    payments.NewService(payments.NewStore(db), ordersSvc, pub, auditSvc, m.Payments, zl),
		dashboard:   dashboard.NewService(dashboard.NewStore(db), zl),
		metrics:     m,
	}

	registry := boards.NewRegistry(
		boards.New(boards.KitchenDef(ordersSvc), hub, boardOptions(cfg, m), zl),
		boards.New(boards.ServerDef(ordersSvc), hub, boardOptions(cfg, m), zl),
		boards.New(boards.TablesDef(tablesSvc), hub, boardOptions(cfg, m), zl),
		boards.New(boards.OrdersDef(ordersSvc), hub, boardOptions(cfg, m), zl),
	)
	registry.Start(ctx)

	sched := jobs.NewScheduler(time.Minute, zl.Named("jobs"))
	for _, j := range []struct {
		name, expr string
		fn         jobs.Func
	}{
		{"low-stock", cfg.LowStockSchedule, jobs.LowStockSweep(stockSvc, pub, m.LowStockItems, zl)},
		{"purge-sessions", "@every 1h", jobs.PurgeSessions(svc.auth, zl)},
		{"pin-limiter-cleanup", "@every 5m", jobs.CleanupLimiter(limiter, limiterIdle, zl)},
	} {
		if err := sched.Add(j.name, j.expr, j.fn); err != nil {
			zl.Fatal("schedule job", zap.Error(err))
		}
	}
	sched.Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: httpx.ErrorHandler(zl),
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
	})
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Static(storage.URLPrefix, cfg.RecipeImagePath)
	registerRoutes(app, svc, zl)

	gateway := &http.Server{
		Addr: ":" + cfg.RealtimePort,
		Handler: boards.NewGateway(svc.auth, registry, hub, boards.GatewayOptions{
			AllowedOrigins: cfg.CORSOrigins,
		}, zl.Named("gateway")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("realtime gateway listening", zap.String("port", cfg.RealtimePort))
		if err := gateway.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("realtime gateway", zap.Error(err))
		}
	}()
	go func() {
		zl.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	registry.Close()
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		zl.Warn("gateway shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		zl.Warn("jobs shutdown", zap.Error(err))
	}
	hub.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func boardOptions(cfg *config.Config, m *metrics.Metrics) boards.Options {
	return boards.Options{
		Debounce:  cfg.RefetchDebounce,
		MaxWait:   cfg.RefetchMaxWait,
		Refetches: m.BoardRefetches,
	}
}
