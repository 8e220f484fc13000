package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/application/webhook_handlers"
	"shopify-multishop-layer/internal/config"
	"shopify-multishop-layer/internal/infrastructure/api"
	"shopify-multishop-layer/internal/infrastructure/cache"
	"shopify-multishop-layer/internal/infrastructure/encryption"
	"shopify-multishop-layer/internal/infrastructure/metrics"
	"shopify-multishop-layer/internal/infrastructure/queue"
	"shopify-multishop-layer/internal/infrastructure/repository"
	shopifyinfra "shopify-multishop-layer/internal/infrastructure/shopify"
	"shopify-multishop-layer/internal/infrastructure/sqlrepo"
	"shopify-multishop-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	shutdownTimeout    = 15 * time.Second
	statePurgeInterval = 5 * time.Minute
	swaggerFile        = "./docs/swagger.json"
	readHeaderTimeout  = 10 * time.Second
	storageConnTimeout = 10 * time.Second
)

// storage bundles the repositories of one backend
type storage struct {
	shops  ports.ShopRepository
	states ports.OAuthStateRepository
	events ports.WebhookEventRepository
	usage  ports.UsageRepository
	ping   []func(ctx context.Context) error
	close  []func()
}

func (s *storage) health(ctx context.Context) error {
	for _, ping := range s.ping {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *storage) shutdown() {
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i]()
	}
}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn().Msg("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure (implementations)
	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	tokenManager := shopifyinfra.NewTokenManager(encryptionService, logger)
	promMetrics := metrics.NewPrometheus()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("Failed to open storage")
	}
	defer store.shutdown()

	if cfg.StateStore == config.StateStoreRedis {
		if err := useRedisStates(ctx, cfg, store); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
	}

	webhookQueue := newQueue(cfg, logger)

	shopifyClient := shopifyinfra.NewClient(shopifyinfra.ClientConfig{
		APIKey:     cfg.ShopifyAPIKey,
		APISecret:  cfg.ShopifyAPISecret,
		APIVersion: cfg.ShopifyAPIVersion,
		Timeout:    cfg.ShopifyHTTPTimeout,
	}, promMetrics, logger)
	verifier := shopifyinfra.NewVerifier(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret)
	sessionTokens := shopifyinfra.NewSessionTokenVerifier(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.SessionTokenAlgorithm)

	// Initialize application services
	stateService := application.NewStateService(store.states, cfg.OAuthStateTTL, logger)
	credentialsService := application.NewCredentialsService(store.shops, tokenManager, logger)
	oauthService := application.NewOAuthService(
		stateService,
		credentialsService,
		shopifyClient,
		verifier,
		promMetrics,
		application.OAuthConfig{
			Scopes:        cfg.ShopifyScopes,
			AppURL:        cfg.AppURL,
			WebhookTopics: cfg.WebhookTopics,
		},
		logger,
	)
	webhookService := application.NewWebhookService(store.events, webhookQueue, verifier, promMetrics, logger)
	shopAPIService, err := application.NewShopAPIService(credentialsService, shopifyClient, store.usage, store.events, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize shop API service")
	}

	// Initialize webhook dispatcher and register handlers
	dispatcher := application.NewWebhookDispatcher(store.events, promMetrics, cfg.WebhookTimeout, logger)
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(credentialsService, logger))
	dispatcher.RegisterHandler(webhook_handlers.NewOrderHandler(promMetrics, logger))
	dispatcher.RegisterHandler(webhook_handlers.NewProductHandler(logger))
	dispatcher.RegisterHandler(webhook_handlers.NewCustomerHandler(logger))

	// Workers outlive the signal so Close can drain the buffer; stopWorkers bounds the drain
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	webhookQueue.Start(workerCtx, dispatcher.Process)
	if n, err := dispatcher.RecoverPending(ctx, webhookQueue, cfg.WebhookBuffer); err != nil {
		logger.Error().Err(err).Int("enqueued", n).Msg("Recovery sweep stopped early")
	}

	if cfg.StateStore == config.StateStoreDB {
		go stateService.RunPurger(ctx, statePurgeInterval)
	}

	router := api.NewRouter(api.Dependencies{
		OAuth:               oauthService,
		Credentials:         credentialsService,
		Webhooks:            webhookService,
		Shops:               shopAPIService,
		SessionTokens:       sessionTokens,
		Health:              store.health,
		Metrics:             promMetrics.Handler(),
		RequireSessionToken: cfg.RequireSessionToken,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		MaxWebhookBodyBytes: cfg.MaxWebhookBodyBytes,
		SwaggerFile:         swaggerFile,
		Logger:              logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("storage", cfg.StorageDriver).
			Str("stateStore", cfg.StateStore).
			Str("queue", cfg.WebhookQueue).
			Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	oauthService.Wait()
	drainTimer := time.AfterFunc(shutdownTimeout, stopWorkers)
	defer drainTimer.Stop()
	if err := webhookQueue.Close(); err != nil {
		logger.Error().Err(err).Msg("Webhook queue shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, storageConnTimeout)
	defer cancel()

	switch cfg.StorageDriver {
	case config.StorageMongo:
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureIndexes(connectCtx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")

		return &storage{
			shops:  repository.NewMongoShopRepository(db),
			states: repository.NewMongoOAuthStateRepository(db),
			events: repository.NewMongoWebhookEventRepository(db),
			usage:  repository.NewMongoUsageRepository(db),
			ping: []func(context.Context) error{func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			}},
			close: []func(){func() {
				if err := client.Disconnect(context.Background()); err != nil {
					logger.Error().Err(err).Msg("Failed to disconnect from MongoDB")
				}
			}},
		}, nil

	default:
		db, err := sqlrepo.Open(cfg.StorageDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		logger.Info().Str("driver", cfg.StorageDriver).Msg("Connected to database")

		return &storage{
			shops:  sqlrepo.NewShopRepository(db),
			states: sqlrepo.NewOAuthStateRepository(db),
			events: sqlrepo.NewWebhookEventRepository(db),
			usage:  sqlrepo.NewUsageRepository(db),
			ping:   []func(context.Context) error{sqlDB.PingContext},
			close: []func(){func() {
				if err := sqlrepo.Close(db); err != nil {
					logger.Error().Err(err).Msg("Failed to close database")
				}
			}},
		}, nil
	}
}

// useRedisStates moves OAuth state tokens to Redis, where expiry is native
func useRedisStates(ctx context.Context, cfg *config.Config, store *storage) error {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	store.states = cache.NewRedisStateRepository(client, "")
	store.ping = append(store.ping, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	store.close = append(store.close, func() { _ = client.Close() })
	return nil
}

func newQueue(cfg *config.Config, logger zerolog.Logger) ports.WebhookQueue {
	if cfg.WebhookQueue == config.QueueKafka {
		return queue.NewKafkaQueue(queue.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, logger)
	}
	return queue.NewMemoryQueue(cfg.WebhookBuffer, cfg.WebhookWorkers, logger)
}
