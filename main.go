package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/permsync/permsync/api/audit"
	"github.com/permsync/permsync/api/config"
	"github.com/permsync/permsync/api/controller"
	"github.com/permsync/permsync/api/db"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/ratelimit"
	"github.com/permsync/permsync/api/reconcile"
	"github.com/permsync/permsync/api/router"
	"github.com/permsync/permsync/api/service"
	"github.com/permsync/permsync/api/store"
	"github.com/permsync/permsync/api/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger("logging")
	defer logger.Sync()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize Neo4j when the access graph is enabled
	if config.GetBool("graph.enabled") {
		if err := db.InitNeo4j(); err != nil {
			logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
		}
		defer db.CloseNeo4j()
	}

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	cacheService := util.NewCacheService()
	notificationService := util.NewNotificationService()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Template store
	templateStore, err := store.NewFileStore(config.GetString("templates.dir"))
	if err != nil {
		logger.Fatal("Failed to open template store", zap.Error(err))
	}

	// Provider driver
	client, source, err := buildProvider(config.GetString("provider.driver"))
	if err != nil {
		logger.Fatal("Failed to initialize provider", zap.Error(err))
	}

	// Shared backoff slots live in Redis so all replicas observe the same
	// provider cool-downs
	invoker := ratelimit.NewInvoker(ratelimit.NewRedisStore(db.RedisClient))

	mode, ok := reconcile.ParseMode(config.GetString("reconcile.mode"))
	if !ok {
		logger.Fatal("Invalid reconcile mode", zap.String("mode", config.GetString("reconcile.mode")))
	}
	retryWait, err := time.ParseDuration(config.GetString("provider.retryWait"))
	if err != nil {
		logger.Fatal("Invalid provider retry wait", zap.Error(err))
	}

	// Initialize services
	services, err := service.InitializeServices(
		db.Neo4jDriver,
		client,
		source,
		templateStore,
		invoker,
		auditService,
		validationUtil,
		cacheService,
		notificationService,
		eventBus,
		service.ReconcileOptions{
			DefaultMode: mode,
			MaxRetries:  config.GetInt("provider.maxRetries"),
			RetryWait:   retryWait,
			Concurrency: config.GetInt("provider.concurrency"),
			UseLock:     true,
		},
	)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Initialize controllers
	controllers := controller.InitializeControllers(services)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(controllers, 100, time.Minute) // 100 requests per minute

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// buildProvider selects the SSO provider driver. The memory driver backs dev
// mode; cloud adapters register here as they are added.
func buildProvider(driver string) (provider.Client, provider.DirectorySource, error) {
	switch driver {
	case "memory":
		mem := provider.NewMemory()
		return mem, mem, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider driver %q", driver)
	}
}
