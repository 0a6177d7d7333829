package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-migration-service/internal/cache"
	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/clients/magento"
	"catalog-migration-service/internal/clients/shopify"
	"catalog-migration-service/internal/config"
	"catalog-migration-service/internal/database"
	"catalog-migration-service/internal/handlers"
	"catalog-migration-service/internal/middleware"
	"catalog-migration-service/internal/repository"
	"catalog-migration-service/internal/secrets"
	"catalog-migration-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Platform credentials from GCP Secret Manager override the environment
	if cfg.GCPProjectID != "" && cfg.PlatformSecretName != "" {
		applyPlatformSecret(cfg, logger)
	} else if cfg.GCPProjectID == "" {
		logger.Warn("GCP_PROJECT_ID not set, platform credentials are read from the environment")
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	var (
		jobStore     services.JobStore
		mappingStore services.MappingStore
		jobReader    handlers.JobReader
		pinger       handlers.Pinger
	)
	if cfg.DatabaseEnabled {
		db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		if err := database.Migrate(db); err != nil {
			logger.WithError(err).Warn("Auto-migration failed")
		} else {
			logger.Info("Database models migrated")
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.WithError(err).Fatal("Failed to get database handle")
		}
		defer sqlDB.Close()

		migrationRepo := repository.NewMigrationRepository(db)
		jobStore = migrationRepo
		jobReader = migrationRepo
		mappingStore = repository.NewMappingRepository(db)
		pinger = sqlDB
	} else {
		logger.Warn("Database disabled, job history and product mappings are not persisted")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	retrier := clients.NewRetrier(nil)

	var source clients.SourceClient = magento.NewClient(cfg.MagentoAPIURL, cfg.MagentoAPIToken,
		magento.WithHTTPClient(httpClient),
		magento.WithPaging(cfg.MagentoPageSize, cfg.MagentoMaxPages),
		magento.WithRateLimit(cfg.MagentoRPS),
		magento.WithRetrier(retrier),
	)
	if cfg.RedisURL != "" {
		if redisClient := connectRedis(cfg.RedisURL, logger); redisClient != nil {
			defer redisClient.Close()
			source = cache.NewSchemaCachingSource(source, redisClient, cfg.MagentoAPIURL, cfg.SchemaCacheTTL, logrus.NewEntry(logger))
		}
	}

	endpoint := cfg.ShopifyAdminAPIURL
	if endpoint == "" {
		endpoint = shopify.EndpointURL(cfg.ShopifyStoreURL, cfg.ShopifyAPIVersion)
	}
	destination := shopify.NewClient(endpoint, cfg.ShopifyAccessToken,
		shopify.WithHTTPClient(httpClient),
		shopify.WithRateLimit(cfg.ShopifyRPS),
		shopify.WithRetrier(retrier),
	)

	matcher, err := services.MatcherByName(cfg.DefaultVariantMatch)
	if err != nil {
		logger.WithError(err).Fatal("Invalid default variant matcher")
	}
	entry := logrus.NewEntry(logger).WithField("service", "catalog-migration-service")
	reconciler := services.NewReconciler(destination, services.ReconcilerConfig{
		Matcher:        matcher,
		MediaBatchSize: cfg.MediaBatchSize,
	}, entry)

	limiter := services.NewJobLimiter(&services.JobLimiterConfig{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		QueueTimeout:      cfg.JobQueueTimeout,
	})

	migrationService := services.NewMigrationService(
		source,
		destination,
		reconciler,
		jobStore,
		mappingStore,
		limiter,
		services.MigrationConfig{
			MediaBaseURL:    cfg.MediaBaseURL,
			SyncConcurrency: cfg.SyncConcurrency,
		},
		entry,
	)

	healthHandler := handlers.NewHealthHandler(pinger, limiter)
	migrationHandler := handlers.NewMigrationHandler(migrationService, jobReader)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, logger, healthHandler, migrationHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"environment": cfg.Environment,
		}).Info("Catalog migration service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server exited")
}

// connectRedis returns a client for the schema cache, or nil when Redis is unusable
func connectRedis(redisURL string, logger *logrus.Logger) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, attribute schema caching disabled")
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, attribute schema caching disabled")
		client.Close()
		return nil
	}
	logger.Info("Redis connected, attribute schema caching enabled")
	return client
}

// applyPlatformSecret overlays platform credentials read from GCP Secret Manager
func applyPlatformSecret(cfg *config.Config, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	secretManager, err := secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize GCP Secret Manager")
		return
	}
	defer secretManager.Close()

	secret, err := secretManager.GetPlatformSecret(ctx, cfg.PlatformSecretName)
	if err != nil {
		logger.WithError(err).Warn("Failed to read platform credentials, using environment")
		return
	}

	if m := secret.Magento; m != nil {
		if m.APIURL != "" {
			cfg.MagentoAPIURL = m.APIURL
		}
		if m.AccessToken != "" {
			cfg.MagentoAPIToken = m.AccessToken
		}
	}
	if s := secret.Shopify; s != nil {
		if s.Store != "" {
			cfg.ShopifyStoreURL = s.Store
			cfg.ShopifyAdminAPIURL = ""
		}
		if s.APIVersion != "" {
			cfg.ShopifyAPIVersion = s.APIVersion
		}
		if s.AccessToken != "" {
			cfg.ShopifyAccessToken = s.AccessToken
		}
	}
	logger.WithField("secret", cfg.PlatformSecretName).Info("Platform credentials loaded from GCP Secret Manager")
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	migrationHandler *handlers.MigrationHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAPIKey(cfg.APIKey))
	{
		migration := v1.Group("/migration")
		{
			migration.GET("/products", migrationHandler.PreviewProducts)
			migration.GET("/products/export", migrationHandler.ExportProducts)
			migration.POST("/products/lookup", migrationHandler.LookupProducts)
			migration.POST("/sync", migrationHandler.SyncProducts)
			migration.GET("/jobs", migrationHandler.ListJobs)
			migration.GET("/jobs/:id", migrationHandler.GetJob)
			migration.GET("/jobs/:id/logs", migrationHandler.GetJobLogs)
		}
	}

	return router
}
