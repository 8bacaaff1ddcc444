package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fundsledger/api"
	"fundsledger/application"
	"fundsledger/config"
	"fundsledger/database"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/services"
	"fundsledger/infrastructure"
	"fundsledger/infrastructure/observability"
	"fundsledger/repository"
	"fundsledger/repository/memory"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the ledger service
func Run(ctx context.Context) error {
	cfg := config.Get()
	cfg.ConfigureLogging()

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"store":       cfg.Store,
	}).Info("Starting funds ledger...")

	// Initialize metrics
	metricsProvider := observability.NewMetricsProvider(cfg)
	if err := metricsProvider.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsProvider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error shutting down metrics provider")
		}
	}()

	// Initialize storage
	var (
		repoFactory infrastructure.RepositoryFactory
		health      func(context.Context) error
		db          *database.DB
	)
	if cfg.UseMemoryStore() {
		log.Warn("Using the in-memory store, balances will not survive a restart")
		store := memory.NewStore()
		repoFactory = memory.NewUnitOfWorkFactory(store)
		health = func(context.Context) error { return store.Ping() }
	} else {
		log.Info("Running database migrations...")
		if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		log.Info("Connecting to database...")
		var err error
		db, err = database.NewConnection(ctx, cfg.GetDatabaseURL(), cfg.DatabaseMaxConns)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")

		pgFactory := repository.NewUnitOfWorkFactory(db)
		repoFactory = pgFactory
		health = pgFactory.Ping
	}

	// Initialize event publishing
	var (
		eventPublisher interfaces.EventPublisher = infrastructure.NewNoopEventPublisher()
		natsClient     *infrastructure.NATSClient
	)
	if cfg.NATSEnabled {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}

		subjectMapper := infrastructure.NewEventSubjectMapper()
		if err := natsClient.EnsureStreams(infrastructure.LedgerStreams(subjectMapper)...); err != nil {
			return fmt.Errorf("failed to ensure JetStream streams: %w", err)
		}

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, subjectMapper)
		natsPublisher.OnPublished(func(eventType events.EventType) {
			metricsProvider.RecordNATSMessagePublished(string(eventType))
		})
		eventPublisher = natsPublisher
	} else {
		log.Info("NATS disabled, domain events will not leave the process")
	}

	// Initialize balance cache
	var balanceCache interfaces.BalanceCache
	var redisCache *infrastructure.RedisBalanceCache
	if cfg.RedisAddr != "" {
		redisCache = infrastructure.NewRedisBalanceCache(
			infrastructure.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
			cfg.BalanceCacheTTL,
		)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, cache reads will fall through to the store")
		}
		balanceCache = redisCache
		log.WithField("addr", cfg.RedisAddr).Info("Balance cache enabled")
	}

	// Initialize services
	uowFactory := infrastructure.NewUnitOfWorkFactory(repoFactory, eventPublisher)
	engine := services.NewLedgerEngine(uowFactory, services.LedgerEngineOptions{
		MaxCommitRetries:     cfg.MaxCommitRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		MaxWithdrawalAmount:  cfg.MaxWithdrawalAmount,
		MaxTransferAmount:    cfg.MaxTransferAmount,
		Metrics:              metricsProvider,
		Cache:                balanceCache,
	})
	transactionLog := services.NewTransactionLogService(uowFactory)
	log.Info("Ledger services initialized successfully")

	// Start settlement consumer
	if natsClient != nil {
		consumer := infrastructure.NewMessageConsumer(natsClient)
		consumer.OnReceived = metricsProvider.RecordNATSMessageReceived
		infrastructure.RegisterPaymentSubscriptions(consumer, application.NewWithdrawalSettlementHandler(engine))
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start message consumer: %w", err)
		}
	}

	// Start workers
	expiryWorker := application.NewPromoExpiryWorker(engine, cfg.PromoExpiryInterval, cfg.PromoExpiryBatchSize)
	stopExpiryWorker := expiryWorker.Start(ctx)

	// Start HTTP server
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Dependencies{
			Ledger:         engine,
			Settlement:     engine,
			TransactionLog: transactionLog,
			Health:         health,
			AdminAPIKey:    cfg.AdminAPIKey,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if cfg.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY is not set, operator routes are open")
	}
	log.Infof("Funds ledger is running in %s mode...", cfg.Environment)

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	// Cleanup resources
	log.Info("Shutting down funds ledger...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	stopExpiryWorker()

	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis client")
		}
	}

	if db != nil {
		log.Info("Closing database connection...")
		db.Close()
	}

	log.Info("Shutdown completed")
	return runErr
}
