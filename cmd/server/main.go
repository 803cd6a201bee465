// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/printforge/marketplace-backend/internal/cache"
	"github.com/printforge/marketplace-backend/internal/config"
	"github.com/printforge/marketplace-backend/internal/database"
	"github.com/printforge/marketplace-backend/internal/middleware"
	"github.com/printforge/marketplace-backend/internal/router"
	"github.com/printforge/marketplace-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogging(cfg.Environment)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	// Initialize cache
	redisClient, err := cache.NewRedisClient(cache.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to redis")
	}
	defer redisClient.Close()

	// Initialize object storage
	storage, err := services.NewMinioProvider(cfg.Storage)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize object storage")
	}

	// Initialize event bus
	bus, err := services.NewNATSBus(cfg.Events.NATSEndpoint, "gateway")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to nats")
	}
	publisher := services.NewEventPublisher(bus, cfg.Events)

	// Initialize token verification via OIDC discovery
	authCtx, authCancel := context.WithTimeout(context.Background(), 10*time.Second)
	authenticator, err := middleware.NewAuthenticator(authCtx, cfg.Auth.IssuerURL(), cfg.Auth.ClientID)
	authCancel()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize authenticator")
	}

	r := router.Initialize(cfg, db, redisClient, storage, bus, publisher, authenticator)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting gateway")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	// Flush pending publishes before the connection goes away.
	if err := bus.Drain(); err != nil {
		logrus.WithError(err).Error("Failed to drain nats connection")
	}

	logrus.Info("Gateway exited")
}

func configureLogging(environment string) {
	if environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}
}
