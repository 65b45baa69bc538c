package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/bgysuite/barangay-backend/internal/adapter/handler"
	"github.com/bgysuite/barangay-backend/internal/adapter/notify"
	"github.com/bgysuite/barangay-backend/internal/adapter/storage"
	"github.com/bgysuite/barangay-backend/internal/config"
	"github.com/bgysuite/barangay-backend/internal/core/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	logger := config.NewLogger()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Fatal("failed to ping mysql")
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect redis")
	}
	logger.Info("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	locker := redislock.New(rdb)

	// Notification dispatcher
	dispatcher := notify.NewDispatcher(logger, cfg.NotifyWorkers, cfg.NotifyQueueSize)
	logger.WithField("workers", cfg.NotifyWorkers).Info("notification dispatcher started")

	// Services
	requestService := service.NewRequestService(mysqlAdapter, redisAdapter, dispatcher, logger)
	fulfillmentService := service.NewFulfillmentService(mysqlAdapter, redisAdapter, dispatcher, logger)
	paymentService := service.NewPaymentService(mysqlAdapter, locker, dispatcher, logger)

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-Role", "X-Resident-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	httpHandler := handler.NewHTTPHandler(requestService, fulfillmentService, paymentService, logger)
	httpHandler.Register(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	// Drain pending notifications before dropping connections.
	dispatcher.Close()
	logger.Info("notification dispatcher stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
