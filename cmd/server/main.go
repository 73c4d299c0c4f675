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
	logger.Printf(
		"deposit gate config store_mode=%s asset=%s confirmation_threshold=%d pool_min_size=%d",
		cfg.StoreMode,
		cfg.AssetSymbol,
		cfg.ConfirmationThreshold,
		cfg.PoolMinSize,
	)

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

	if container.InitializePersistenceUseCase != nil {
		logger.Printf("persistence initialization starting database_target=%s", cfg.DatabaseTarget)
		persistenceErr := container.InitializePersistenceUseCase.Execute(ctx, dto.InitializePersistenceCommand{
			ReadinessTimeout:       cfg.DBReadinessTimeout,
			ReadinessRetryInterval: cfg.DBReadinessRetryInterval,
		})
		if persistenceErr != nil {
			logger.Printf(
				"persistence initialization failed code=%s message=%s details=%v",
				persistenceErr.Code,
				persistenceErr.Message,
				persistenceErr.Details,
			)
			os.Exit(1)
		}
		logger.Printf("persistence initialization completed database_target=%s", cfg.DatabaseTarget)
	}

	if container.PoolKeeperWorker != nil && container.PoolKeeperWorker.Enabled() {
		go container.PoolKeeperWorker.Start(ctx)
	}

	// The memory store is process-local, so the monitor and dispatcher
	// runtimes would see an empty store if run as separate binaries.
	if cfg.StoreMode == config.StoreModeMemory {
		if container.MonitorWorker != nil && container.MonitorWorker.Enabled() {
			go container.MonitorWorker.Start(ctx)
		}
		if container.DispatcherWorker != nil && container.DispatcherWorker.Enabled() {
			go container.DispatcherWorker.Start(ctx)
		}
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- container.Server.Start()
	}()

	select {
	case err := <-serverErrCh:
		if err != nil {
			logger.Printf("server startup failed: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := container.Server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("graceful shutdown failed: %v", err)
			os.Exit(1)
		}

		if err := <-serverErrCh; err != nil {
			logger.Printf("server stopped with error: %v", err)
			os.Exit(1)
		}

		logger.Printf("server stopped")
	}
}
