// cmd/worker/main.go
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
	"gorm.io/gorm"

	"github.com/printforge/marketplace-backend/internal/config"
	"github.com/printforge/marketplace-backend/internal/database"
	"github.com/printforge/marketplace-backend/internal/services"
)

// queueGroup load-balances index events across worker replicas.
const queueGroup = "listings-worker"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogging(cfg.Worker.Environment)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Initialize event bus
	bus, err := services.NewNATSBus(cfg.Events.NATSEndpoint, queueGroup)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to nats")
	}

	// Initialize search engine client
	indexer := services.NewTypesenseIndexer(cfg.Search)

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := indexer.HealthCheck(healthCtx); err != nil {
		logrus.WithError(err).Warn("Search engine unreachable at startup, continuing")
	}
	healthCancel()

	indexing := services.NewIndexingService(
		services.NewListingReader(db),
		indexer,
		cfg.Frontend.PublicFilesURL,
	)

	if err := bus.Subscribe(cfg.Events.IndexListingSubject, queueGroup, indexing.HandleIndexEvent); err != nil {
		logrus.WithError(err).Fatal("Failed to subscribe to index events")
	}

	healthSrv := startHealthServer(cfg.Worker.Port, db, bus)

	logrus.WithFields(logrus.Fields{
		"subject": cfg.Events.IndexListingSubject,
		"queue":   queueGroup,
	}).Info("Indexing worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down indexing worker")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := healthSrv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Health server forced to shutdown")
	}

	// Drain lets in-flight handlers finish so their acks reach the broker.
	if err := bus.Drain(); err != nil {
		logrus.WithError(err).Error("Failed to drain nats connection")
	}

	logrus.Info("Indexing worker exited")
}

// startHealthServer exposes /health for orchestrator probes. The worker has
// no other HTTP surface, so a plain mux is enough.
func startHealthServer(port string, db *gorm.DB, bus services.Bus) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}

		if !bus.IsConnected() {
			http.Error(w, "event bus disconnected", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start health server")
		}
	}()

	return srv
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
