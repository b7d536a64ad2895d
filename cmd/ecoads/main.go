package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"ecoads/internal/backend"
	"ecoads/internal/cache"
	"ecoads/internal/cli"
	apphttp "ecoads/internal/http"
	"ecoads/internal/log"
	"ecoads/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}
	b := res.Backend

	workbooks := services.NewWorkbookService(b.Files, b.Remote, b.Publisher, services.WorkbookConfig{
		ParseCacheSize: cfg.ParseCacheSize,
		ParseCacheTTL:  cfg.ParseCacheTTL,
		UploadTTL:      cfg.SessionTTL,
	}, logger.Logger)

	readyChecks := map[string]apphttp.ReadyCheck{}
	if b.Health != nil {
		readyChecks["amqp"] = b.Health
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Workbooks:          workbooks,
		Analysis:           services.NewAnalysisService(logger.Logger),
		Sessions:           b.Sessions,
		Publisher:          b.Publisher,
		Logger:             logger,
		DefaultRate:        cfg.DefaultRate,
		DefaultPolicy:      cfg.FinalPolicy,
		DefaultPalette:     cfg.Palette,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
		ReadyChecks:        readyChecks,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	cleanup := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cleanup.Register("parse_cache", workbooks.ParseCache())
	cleanup.Register("uploads", workbooks.Uploads())
	cleanup.Register("sessions", b.Sessions)
	cleanup.Register("rate_limit", srv.RateLimiter())
	if err := cleanup.Start(cfg.CleanupSchedule); err != nil {
		logger.Error("Failed to start cleanup schedule", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cleanup.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting ecoads server",
		"port", cfg.Port,
		"sessions", cfg.SessionBackend,
		"remote_enabled", b.Remote != nil,
		"amqp_enabled", b.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
