package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"depositgate/internal/application/dto"
	"depositgate/internal/infrastructure/config"
	"depositgate/internal/infrastructure/di"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
	cfg, cfgErr := config.LoadConfig()
	if cfgErr != nil {
		logger.Printf("startup config error code=%s message=%s", cfgErr.Code, cfgErr.Message)
		os.Exit(1)
	}
	if dispatcherCfgErr := validateDispatcherConfig(cfg); dispatcherCfgErr != nil {
		logger.Printf(
			"event dispatcher config error code=%s message=%s",
			dispatcherCfgErr.Code,
			dispatcherCfgErr.Message,
		)
		os.Exit(1)
	}

	container, buildErr := di.Build(cfg, logger)
	if buildErr != nil {
		logger.Printf("dependency wiring error: %v", buildErr)
		os.Exit(1)
	}
	defer func() {
		if container.EventPublisher != nil {
			container.EventPublisher.Close()
		}
		if container.Database == nil {
			return
		}
		if err := container.Database.Close(); err != nil {
			logger.Printf("database close warning error=%v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("event dispatcher persistence initialization starting database_target=%s", cfg.DatabaseTarget)
	persistenceErr := container.InitializePersistenceUseCase.Execute(ctx, dto.InitializePersistenceCommand{
		ReadinessTimeout:       cfg.DBReadinessTimeout,
		ReadinessRetryInterval: cfg.DBReadinessRetryInterval,
	})
	if persistenceErr != nil {
		logger.Printf(
			"event dispatcher persistence initialization failed code=%s message=%s details=%v",
			persistenceErr.Code,
			persistenceErr.Message,
			persistenceErr.Details,
		)
		os.Exit(1)
	}
	logger.Printf("event dispatcher persistence initialization completed database_target=%s", cfg.DatabaseTarget)

	if container.DispatcherWorker == nil || !container.DispatcherWorker.Enabled() {
		logger.Printf("event dispatcher startup failed code=dispatcher_worker_not_enabled message=dispatcher worker is not enabled")
		os.Exit(1)
	}

	go container.DispatcherWorker.Start(ctx)
	<-ctx.Done()
	logger.Printf("event dispatcher stopped")
}

func validateDispatcherConfig(cfg config.Config) *config.ConfigError {
	if cfg.StoreMode == config.StoreModeMemory {
		return &config.ConfigError{
			Code:    "config_store_mode_invalid",
			Message: "memory store mode runs all workers inside the server runtime",
		}
	}

	if cfg.WebhookURL == "" && cfg.RabbitMQURL == "" {
		return &config.ConfigError{
			Code:    "config_event_sink_required",
			Message: "WEBHOOK_URL or RABBITMQ_URL is required for the event dispatcher runtime",
		}
	}

	if cfg.WebhookURL != "" && strings.TrimSpace(cfg.WebhookHMACSecret) == "" {
		return &config.ConfigError{
			Code:    "config_webhook_secret_required",
			Message: "WEBHOOK_HMAC_SECRET is required when WEBHOOK_URL is set",
		}
	}

	return nil
}
