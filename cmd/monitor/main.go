package main

import (
	"context"
	"log"
	"os"
	"os/signal"
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
	if cfg.StoreMode == config.StoreModeMemory {
		logger.Printf("monitor config error code=config_store_mode_invalid message=memory store mode runs all workers inside the server runtime")
		os.Exit(1)
	}

	container, buildErr := di.Build(cfg, logger)
	if buildErr != nil {
		logger.Printf("dependency wiring error: %v", buildErr)
		os.Exit(1)
	}
	defer func() {
		if container.Database == nil {
			return
		}
		if err := container.Database.Close(); err != nil {
			logger.Printf("database close warning error=%v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("monitor persistence initialization starting database_target=%s", cfg.DatabaseTarget)
	persistenceErr := container.InitializePersistenceUseCase.Execute(ctx, dto.InitializePersistenceCommand{
		ReadinessTimeout:       cfg.DBReadinessTimeout,
		ReadinessRetryInterval: cfg.DBReadinessRetryInterval,
	})
	if persistenceErr != nil {
		logger.Printf(
			"monitor persistence initialization failed code=%s message=%s details=%v",
			persistenceErr.Code,
			persistenceErr.Message,
			persistenceErr.Details,
		)
		os.Exit(1)
	}
	logger.Printf("monitor persistence initialization completed database_target=%s", cfg.DatabaseTarget)

	if container.MonitorWorker == nil || !container.MonitorWorker.Enabled() {
		logger.Printf("monitor startup failed code=monitor_worker_not_enabled message=monitor worker is not enabled")
		os.Exit(1)
	}

	container.MonitorWorker.Start(ctx)
	logger.Printf("monitor stopped")
}
