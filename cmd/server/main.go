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

	"github.com/yourorg/crypto-alerts/internal/cache"
	"github.com/yourorg/crypto-alerts/internal/client"
	"github.com/yourorg/crypto-alerts/internal/config"
	"github.com/yourorg/crypto-alerts/internal/handler"
	"github.com/yourorg/crypto-alerts/internal/kafka"
	"github.com/yourorg/crypto-alerts/internal/middleware"
	"github.com/yourorg/crypto-alerts/internal/repository"
	"github.com/yourorg/crypto-alerts/internal/scheduler"
	"github.com/yourorg/crypto-alerts/internal/service"
	"github.com/yourorg/crypto-alerts/internal/subscription"
	"github.com/yourorg/crypto-alerts/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := connectToRedis(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	alertRepo := repository.NewAlertRepository(db, logger)
	historyRepo := repository.NewPriceHistoryRepository(db, logger)

	// Initialize price feed clients and router
	binanceClient := client.NewBinanceClient(cfg.Feed.BinanceURL, cfg.Feed.Timeout, logger)
	coinGeckoClient := client.NewCoinGeckoClient(cfg.Feed.CoinGeckoURL, cfg.Feed.Timeout, logger)
	priceRouter := client.NewRouter(binanceClient, coinGeckoClient, logger)

	// Initialize Kafka producer for trigger events
	producer := kafka.NewProducer(cfg.Kafka.Brokers, "crypto-alerts", logger)
	defer producer.Close()
	triggerPublisher := kafka.NewTriggerPublisher(producer, cfg.Kafka.Topics["alertTriggers"], logger)

	// Initialize subscription layer
	registry := subscription.NewRegistry()
	hub := ws.NewHub(registry, logger)
	defer hub.Close()

	// Initialize services
	priceCache := cache.NewPriceCache(redisClient, cfg.Redis.SnapshotPrefix, cfg.Redis.SnapshotTTL, logger)
	alertService := service.NewAlertService(alertRepo, logger)
	evaluator := service.NewAlertEvaluator(alertRepo, triggerPublisher, logger)
	broadcaster := service.NewBroadcaster(registry, hub, logger)
	recorder := service.NewSnapshotRecorder(priceCache, historyRepo, logger)
	priceService := service.NewPriceService(priceRouter, binanceClient, priceCache, historyRepo, logger)

	// Initialize the polling scheduler
	poller := scheduler.New(
		scheduler.Config{
			Interval: cfg.Scheduler.Interval,
			Symbols:  cfg.Scheduler.TrackedSymbols,
		},
		priceRouter,
		evaluator,
		broadcaster,
		recorder,
		logger,
	)

	if err := poller.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start polling scheduler", zap.Error(err))
	}

	// Initialize handlers
	handler.RegisterValidations()
	alertHandler := handler.NewAlertHandler(alertService, logger)
	priceHandler := handler.NewPriceHandler(priceService, logger)
	wsHandler := handler.NewWSHandler(hub, logger)

	// Set up HTTP server with Gin
	router := setupRouter(alertHandler, priceHandler, wsHandler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := poller.Stop(ctx); err != nil {
		logger.Error("Polling scheduler forced to stop", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func connectToRedis(redisConfig config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return redisClient, nil
}

func setupRouter(
	alertHandler *handler.AlertHandler,
	priceHandler *handler.PriceHandler,
	wsHandler *handler.WSHandler,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Live price updates
	router.GET("/ws", wsHandler.Subscribe)

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Crypto price routes
		crypto := v1.Group("/crypto")
		{
			crypto.GET("/price/:symbol", priceHandler.GetPrice)
			crypto.GET("/prices", priceHandler.GetPrices)
			crypto.GET("/supported-symbols", priceHandler.GetSupportedSymbols)
			crypto.GET("/historical/:symbol", priceHandler.GetHistoricalData)

			// User-scoped history routes
			history := crypto.Group("/history")
			history.Use(middleware.RequireUserID())
			history.POST("", priceHandler.SaveHistory)
			history.GET("", priceHandler.GetHistory)
		}

		// Alert routes
		alerts := v1.Group("/alerts")
		alerts.Use(middleware.RequireUserID())
		{
			alerts.POST("", alertHandler.CreateAlert)
			alerts.GET("", alertHandler.GetAlerts)
			alerts.GET("/triggered", alertHandler.GetTriggeredAlerts)
			alerts.PUT("/:id", alertHandler.UpdateAlert)
			alerts.DELETE("/:id", alertHandler.DeleteAlert)
		}
	}

	return router
}
