package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpadp "agriloan/internal/adapter/http"
	mw "agriloan/internal/adapter/middleware"
	"agriloan/internal/adapter/repository/mysql"
	"agriloan/internal/artifactstore"
	"agriloan/internal/config"
	"agriloan/internal/deployment"
	"agriloan/internal/infrastructure/cache"
	"agriloan/internal/infrastructure/db"
	"agriloan/internal/mlmodel"
	"agriloan/internal/monitor"
	"agriloan/internal/platform/logger"
	"agriloan/internal/platform/metrics"
	appuc "agriloan/internal/usecase/application"
	"agriloan/internal/usecase/scope"
)

const referenceCacheTTL = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	// repositories
	apps := mysql.NewApplicationRepository(gdb)
	users := mysql.NewUserRepository(gdb)
	districts := cache.NewCachedDistricts(mysql.NewDistrictRepository(gdb), 256, referenceCacheTTL)
	crops := cache.NewCachedCrops(mysql.NewCropRepository(gdb), 256, referenceCacheTTL)
	predictions := mysql.NewPredictionRepository(gdb)
	resolver := scope.NewResolver(districts, users, mysql.NewAssignmentRepository(gdb))

	// model serving
	health := monitor.New(monitor.NewHostSampler("/"), monitor.WithThresholds(cfg.Thresholds()), monitor.WithMetrics(mt))
	store := artifactstore.NewFileStore()
	server := mlmodel.NewServer(store, mlmodel.Options{
		ModelPath:          cfg.ModelPath,
		Timeout:            cfg.PredictionTimeout,
		LargeLoanThreshold: cfg.LargeLoanMWK,
		Recorder:           health,
	})
	ctx := context.Background()
	if err := server.Load(ctx, cfg.ModelPath); err != nil {
		// submissions fall back until a model is deployed
		slog.Warn("initial model not loaded", "path", cfg.ModelPath, "err", err)
	}

	deployer := deployment.NewManager(server, health, store, predictions, cfg.Deployment(), deployment.WithMetrics(mt))
	if err := deployer.DiscoverBackups(ctx); err != nil {
		slog.Warn("backup discovery failed", "dir", cfg.ModelBackupPath, "err", err)
	}

	uc := appuc.NewUsecase(appuc.Deps{
		Applications: apps,
		Reviews:      mysql.NewReviewRepository(gdb),
		YieldHistory: mysql.NewYieldHistoryRepository(gdb),
		Users:        users,
		Districts:    districts,
		Crops:        crops,
		Scope:        resolver,
		Scorer:       server,
		UoW:          mysql.NewGormUoW(gdb),
		Metrics:      mt,
		Fallback:     cfg.Fallback(),
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Recover(), middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				slog.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))

	httpadp.Routes{
		Liveness:     httpadp.NewLivenessHandler(),
		Applications: httpadp.NewApplicationHandler(uc),
		Monitoring: httpadp.NewMonitoringHandler(health, deployer, uc, httpadp.ServingConfig{
			ModelVersion:      cfg.ModelVersion,
			PredictionTimeout: cfg.PredictionTimeout,
		}),
		Auth:        mw.AuthMiddleware(mw.NewTokenVerifier(cfg.JWTSecret)),
		Idempotency: mw.IdempotencyMiddleware(rdb, cfg.IdempotencyTTL()),
		Prometheus:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}.Register(e)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := deployer.Start(sigCtx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		slog.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-sigCtx.Done():
		slog.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			slog.Error("http server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	if err := deployer.Stop(); err != nil {
		slog.Error("scheduler stop", "err", err)
	}
	return nil
}
