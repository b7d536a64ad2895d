// Command ecoads-audit consumes workbook and export events from the broker
// and records them in a SQLite audit table.
package main

import (
	"context"
	"os"
	"time"

	"ecoads/internal/amqp"
	"ecoads/internal/cli"
	"ecoads/internal/log"
	"ecoads/internal/services"
)

const summaryInterval = 10 * time.Minute

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentAudit)
	logger.Info("Starting ecoads-audit")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateAudit(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// events are kept; the audit table has no TTL
	repo := cli.InitSQLite(logger, cfg.AuditDBPath, 0)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewAuditProcessor(amqpClient, repo, services.DefaultAuditProcessorConfig())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Audit processor stop", log.FieldError, err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start audit processor", log.FieldError, err)
		os.Exit(1)
	}

	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Audit consumer stopped", "recorded", processor.Recorded())
			return
		case <-ticker.C:
			counts, err := repo.EventCounts(ctx)
			if err != nil {
				logger.Warn("Failed to count audit events", log.FieldError, err)
				continue
			}
			logger.Info("Audit summary", "recorded_this_run", processor.Recorded(), "totals", counts)
		}
	}
}
