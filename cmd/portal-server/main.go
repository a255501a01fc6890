package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/medicore/portal/pkg/auth"
	"github.com/medicore/portal/pkg/common/config"
	"github.com/medicore/portal/pkg/common/database"
	"github.com/medicore/portal/pkg/common/kafka"
	"github.com/medicore/portal/pkg/common/logger"
	"github.com/medicore/portal/pkg/portal"
	"github.com/medicore/portal/pkg/records"
)

func main() {
	logger.Init()
	cfg := config.Load()

	var store records.Store
	switch cfg.StoreBackend {
	case "memory":
		store = records.NewMemoryStore()
		logger.Log.Info("Using in-memory record store")
	default:
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		repo := records.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate portal tables")
		}
		store = repo
		defer database.ClosePostgres()
	}

	var sessions auth.SessionStore
	switch cfg.SessionBackend {
	case "memory":
		sessions = auth.NewMemorySessionStore(cfg.SessionTTL)
		logger.Log.Info("Using in-memory session store")
	default:
		sessions = auth.NewRedisSessionStore(database.GetRedis(), cfg.SessionTTL)
		defer database.CloseRedis()
	}

	creds, err := auth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load credentials")
	}

	var alerts records.EventPublisher
	if cfg.AlertsEnabled {
		producer := kafka.NewProducer(cfg.AlertsTopic)
		defer producer.Close()
		alerts = producer
	}

	recordService := records.NewService(store, alerts)
	if cfg.SeedDemo {
		if err := records.SeedDemo(context.Background(), store); err != nil {
			logger.Log.WithError(err).Fatal("failed to seed demo data")
		}
	}

	authService := auth.NewService(creds, sessions)
	handler := portal.NewHandler(recordService, authService, cfg.SessionCookie)

	router := mux.NewRouter()
	router.Use(auth.Recovery, auth.Logging, auth.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	handler.Register(router)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Portal server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start portal server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down portal server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Portal server forced to shutdown")
	}
	logger.Log.Info("Portal server stopped")
}
