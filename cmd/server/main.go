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

	"pharmacy-store/config"
	"pharmacy-store/internal/api"
	"pharmacy-store/internal/auth"
	"pharmacy-store/internal/broker"
	"pharmacy-store/internal/notify"
	"pharmacy-store/internal/redisclient"
	"pharmacy-store/internal/service"
	"pharmacy-store/internal/store"
	"pharmacy-store/internal/util"
	"pharmacy-store/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pharmacy store", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("pharmacy-store", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("Schema applied")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Store.CartTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)
	hub := notify.NewHub(1)

	catalogService := service.NewCatalogService(db, redisClient, cfg.Store.PromotionCacheTTL, cfg.Store.FeaturedLimit)
	cartService := service.NewCartService(redisClient, catalogService)
	orderService := service.NewOrderService(db, redisClient, catalogService, redisClient, eventPublisher, hub,
		service.OrderServiceConfig{
			CodeAttempts: cfg.Store.OrderCodeAttempts,
			LockTTL:      cfg.Store.CheckoutLockTTL,
		})
	workflowService := service.NewWorkflowService(db, eventPublisher, hub)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Every replica needs every change for its own dashboards, so each one
	// joins with a group of its own.
	groupID := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, uuid.New().String()[:8])
	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, groupID)
	notificationWorker := worker.NewNotificationWorker(notifyConsumer, hub)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	handler := api.NewHandler(catalogService, cartService, orderService, workflowService, issuer,
		map[string]api.Pinger{"postgres": db, "redis": redisClient})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}
	// Open order streams never go idle; end them so Shutdown can drain.
	srv.RegisterOnShutdown(handler.CloseStreams)

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
