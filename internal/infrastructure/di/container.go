package di

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"depositgate/internal/adapters/inbound/http/controllers"
	httpRouter "depositgate/internal/adapters/inbound/http/router"
	"depositgate/internal/adapters/outbound/chain/trongrid"
	"depositgate/internal/adapters/outbound/docs"
	"depositgate/internal/adapters/outbound/messaging/rabbitmq"
	memorystore "depositgate/internal/adapters/outbound/persistence/memory"
	postgresqladdresspool "depositgate/internal/adapters/outbound/persistence/postgresql/addresspool"
	postgresqlbootstrap "depositgate/internal/adapters/outbound/persistence/postgresql/bootstrap"
	postgresqldeposit "depositgate/internal/adapters/outbound/persistence/postgresql/deposit"
	postgresqleventoutbox "depositgate/internal/adapters/outbound/persistence/postgresql/eventoutbox"
	postgresqlshared "depositgate/internal/adapters/outbound/persistence/postgresql/shared"
	hdwallet "depositgate/internal/adapters/outbound/wallet/hd"
	webhookhttp "depositgate/internal/adapters/outbound/webhook/http"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	"depositgate/internal/application/use_cases"
	"depositgate/internal/infrastructure/config"
	"depositgate/internal/infrastructure/dispatcher"
	"depositgate/internal/infrastructure/httpserver"
	"depositgate/internal/infrastructure/monitor"
	"depositgate/internal/infrastructure/poolkeeper"
	"depositgate/internal/infrastructure/ratelimit"
)

type Container struct {
	Database *sql.DB
	Server   *httpserver.Server

	// InitializePersistenceUseCase is nil in memory store mode.
	InitializePersistenceUseCase portsin.InitializePersistenceUseCase

	MonitorWorker    *monitor.Worker
	PoolKeeperWorker *poolkeeper.Worker
	DispatcherWorker *dispatcher.Worker

	EventPublisher *rabbitmq.Publisher
}

// Stores bundles the persistence ports one store mode provides.
type Stores struct {
	Pool     portsout.AddressPoolRepository
	Deposits portsout.DepositRepository
	Outbox   portsout.EventOutboxRepository

	Database             *sql.DB
	PersistenceBootstrap portsout.PersistenceBootstrapGateway
}

type StoreBuilder func(cfg config.Config, logger *log.Logger) Stores

var storeBuilders = map[string]StoreBuilder{
	config.StoreModePostgres: func(cfg config.Config, logger *log.Logger) Stores {
		databasePool := postgresqlshared.NewDatabasePool(cfg.DatabaseURL, logger)
		return Stores{
			Pool:     postgresqladdresspool.NewRepository(databasePool),
			Deposits: postgresqldeposit.NewRepository(databasePool),
			Outbox:   postgresqleventoutbox.NewRepository(databasePool, cfg.DispatchRetryBudget),
			Database: databasePool,
			PersistenceBootstrap: postgresqlbootstrap.NewGateway(
				cfg.DatabaseURL,
				cfg.DatabaseTarget,
				cfg.MigrationsPath,
				logger,
			),
		}
	},
	config.StoreModeMemory: func(cfg config.Config, _ *log.Logger) Stores {
		store := memorystore.NewStore(cfg.DispatchRetryBudget)
		return Stores{
			Pool:     store,
			Deposits: store,
			Outbox:   store,
		}
	},
}

var storeBuildersMu sync.RWMutex

func RegisterStoreBuilder(mode string, builder StoreBuilder) {
	normalizedMode := strings.ToLower(strings.TrimSpace(mode))
	if normalizedMode == "" || builder == nil {
		return
	}

	storeBuildersMu.Lock()
	defer storeBuildersMu.Unlock()
	storeBuilders[normalizedMode] = builder
}

func Build(cfg config.Config, logger *log.Logger) (Container, error) {
	stores, buildErr := buildStores(cfg, logger)
	if buildErr != nil {
		return Container{}, buildErr
	}

	clock := use_cases.NewSystemClock()
	ids := use_cases.NewUUIDGenerator()

	var initializePersistenceUseCase portsin.InitializePersistenceUseCase
	if stores.PersistenceBootstrap != nil {
		initializePersistenceUseCase = use_cases.NewInitializePersistenceUseCase(stores.PersistenceBootstrap)
	}

	chainClient := trongrid.NewClient(trongrid.Config{
		BaseURL:         cfg.ChainAPIBaseURL,
		APIKey:          cfg.ChainAPIKey,
		ContractAddress: cfg.USDTContract,
		AssetSymbol:     cfg.AssetSymbol,
		Timeout:         cfg.PollTimeout,
	})

	requestDepositUseCase := use_cases.NewRequestDepositUseCase(
		stores.Pool,
		stores.Deposits,
		stores.Outbox,
		clock,
		ids,
		use_cases.RequestDepositPolicy{
			ExpiryDuration:        cfg.DepositExpiry,
			ConfirmationThreshold: cfg.ConfirmationThreshold,
			MinAmountMinor:        cfg.MinDepositAmountMinor,
			MaxAmountMinor:        cfg.MaxDepositAmountMinor,
			Asset:                 cfg.AssetSymbol,
		},
	)
	getDepositStatusUseCase := use_cases.NewGetDepositStatusUseCase(stores.Deposits, cfg.ConfirmationThreshold)
	getPoolStatusUseCase := use_cases.NewGetPoolStatusUseCase(stores.Pool, clock, cfg.PoolLowWatermark)
	seedAddressesUseCase := use_cases.NewSeedAddressesUseCase(stores.Pool, clock)
	monitorDepositsUseCase := use_cases.NewMonitorDepositsUseCase(
		stores.Deposits,
		stores.Pool,
		chainClient,
		stores.Outbox,
		ids,
	)
	sweepPoolUseCase := use_cases.NewSweepPoolUseCase(stores.Pool, stores.Outbox, ids, cfg.CooldownDuration)

	var replenishPoolUseCase portsin.ReplenishPoolUseCase
	if cfg.HDSeedMnemonic != "" {
		generator, generatorErr := hdwallet.NewGenerator(hdwallet.Config{
			Mnemonic:   cfg.HDSeedMnemonic,
			Passphrase: cfg.HDSeedPassphrase,
		})
		if generatorErr != nil {
			return Container{}, fmt.Errorf("build address generator: %s", generatorErr.Message)
		}
		replenishPoolUseCase = use_cases.NewReplenishPoolUseCase(stores.Pool, generator)
	} else {
		logger.Printf("pool replenishment disabled reason=hd_seed_mnemonic_unset")
	}

	var eventPublisher *rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, publisherErr := rabbitmq.NewPublisher(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.EventExchange,
		})
		if publisherErr != nil {
			return Container{}, fmt.Errorf("build event publisher: %s", publisherErr.Message)
		}
		eventPublisher = publisher
	}

	webhookGateway := webhookhttp.NewGateway(webhookhttp.Config{
		HMACSecret: cfg.WebhookHMACSecret,
	})
	var publisherPort portsout.EventPublisher
	if eventPublisher != nil {
		publisherPort = eventPublisher
	}
	dispatchEventsUseCase := use_cases.NewDispatchEventsUseCase(
		stores.Outbox,
		webhookGateway,
		publisherPort,
		cfg.WebhookURL,
	)

	monitorWorker := monitor.NewWorker(monitor.Config{
		Enabled:               true,
		PollInterval:          cfg.PollInterval,
		BatchSize:             cfg.MonitorBatchSize,
		WorkerID:              cfg.MonitorWorkerID,
		LeaseDuration:         cfg.MonitorLeaseTime,
		ConfirmationThreshold: cfg.ConfirmationThreshold,
		QueryTimeout:          cfg.PollTimeout,
		MaxPollBackoff:        cfg.PollMaxBackoff,
		CooldownDuration:      cfg.CooldownDuration,
	}, monitorDepositsUseCase, logger)

	poolKeeperWorker := poolkeeper.NewWorker(poolkeeper.Config{
		Enabled:      true,
		TickInterval: cfg.ReplenishInterval,
		MinimumSize:  cfg.PoolMinSize,
		MaxBatchSize: cfg.MaxReplenishBatch,
	}, replenishPoolUseCase, sweepPoolUseCase, logger)

	dispatcherWorker := dispatcher.NewWorker(dispatcher.Config{
		Enabled:        cfg.WebhookURL != "" || eventPublisher != nil,
		PollInterval:   cfg.DispatchInterval,
		BatchSize:      cfg.DispatchBatchSize,
		WorkerID:       cfg.MonitorWorkerID + "-dispatcher",
		LeaseDuration:  cfg.MonitorLeaseTime,
		InitialBackoff: cfg.DispatchInitialWait,
		MaxBackoff:     cfg.DispatchMaxWait,
		RetryBudget:    cfg.DispatchRetryBudget,
	}, dispatchEventsUseCase, logger)

	healthUseCase := use_cases.NewGetHealthUseCase()
	openAPIReadModel := docs.NewFileOpenAPISpecReadModel(cfg.OpenAPISpecPath)
	openAPIUseCase := use_cases.NewGetOpenAPISpecUseCase(openAPIReadModel)

	healthController := controllers.NewHealthController(healthUseCase, logger)
	swaggerController := controllers.NewSwaggerController(openAPIUseCase, logger)
	depositsController := controllers.NewDepositsController(requestDepositUseCase, getDepositStatusUseCase, logger)
	poolController := controllers.NewPoolController(getPoolStatusUseCase, seedAddressesUseCase, logger)

	router := httpRouter.New(httpRouter.Dependencies{
		HealthController:   healthController,
		SwaggerController:  swaggerController,
		DepositsController: depositsController,
		PoolController:     poolController,
		RateLimiter:        buildRateLimiter(cfg, logger),
		RateLimit:          cfg.DepositRateLimitPerMinute,
		RateLimitWindow:    time.Minute,
		Logger:             logger,
	})

	server := httpserver.New(cfg.Address(), router, logger)

	return Container{
		Database:                     stores.Database,
		Server:                       server,
		InitializePersistenceUseCase: initializePersistenceUseCase,
		MonitorWorker:                monitorWorker,
		PoolKeeperWorker:             poolKeeperWorker,
		DispatcherWorker:             dispatcherWorker,
		EventPublisher:               eventPublisher,
	}, nil
}

func buildStores(cfg config.Config, logger *log.Logger) (Stores, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.StoreMode))

	storeBuildersMu.RLock()
	builder, exists := storeBuilders[mode]
	storeBuildersMu.RUnlock()
	if !exists {
		return Stores{}, fmt.Errorf("unsupported store mode: %s", cfg.StoreMode)
	}

	return builder(cfg, logger), nil
}

func buildRateLimiter(cfg config.Config, logger *log.Logger) *ratelimit.RedisRequestLimiter {
	if cfg.RedisURL == "" || cfg.DepositRateLimitPerMinute <= 0 {
		return nil
	}

	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Printf("rate limiter disabled reason=redis_url_invalid err=%v", err)
		return nil
	}

	return ratelimit.NewRedisRequestLimiter(redis.NewClient(options), cfg.RedisRateLimitPrefix)
}
