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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/di"
	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/handler"
	"github.com/realqkqk123fr/temp-backend/internal/metrics"
	"github.com/realqkqk123fr/temp-backend/pkg/bus"
	"github.com/realqkqk123fr/temp-backend/pkg/config"
	"github.com/realqkqk123fr/temp-backend/pkg/database"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	pkgredis "github.com/realqkqk123fr/temp-backend/pkg/redis"
	"github.com/realqkqk123fr/temp-backend/pkg/storage"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and realtime server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting recipe BFF...", zap.String("version", version))

	ctx := context.Background()

	if err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry disabled", zap.Error(err))
	}

	// Database
	db, err := database.NewPostgres(ctx, database.PostgresConfigFrom(cfg.Database, cfg.OTel.Enabled))
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()
	appLog.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	// Redis is optional: idempotency and the redis relay need it
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, pkgredis.ConfigFrom(cfg.Redis))
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()
		appLog.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var natsBus *bus.Bus
	if cfg.Notification.Relay == "nats" {
		natsBus, err = bus.New(cfg.NATS.URL, cfg.NATS.Name)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer natsBus.Close()
		appLog.Info("NATS connected", zap.String("url", cfg.NATS.URL))
	}

	// Kafka event publisher degrades to no-op
	var eventPublisher events.Publisher = events.NewNoOpPublisher()
	if cfg.Kafka.Enabled {
		kp, err := events.NewKafkaPublisher(ctx, &events.Config{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.EventsTopic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn("Kafka connection failed, using no-op publisher", zap.Error(err))
		} else {
			eventPublisher = kp
			appLog.Info("Kafka event publisher connected")
		}
	}

	var images storage.ImageStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			appLog.Warn("Image storage disabled", zap.Error(err))
		} else {
			images = s3Store
		}
	}

	container, err := di.NewContainer(&di.ContainerConfig{
		Config:         cfg,
		Log:            appLog,
		DB:             db,
		Redis:          redisClient,
		Bus:            natsBus,
		Metrics:        metrics.New(),
		Images:         images,
		EventPublisher: eventPublisher,
	})
	if err != nil {
		return err
	}
	defer container.Close()

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	unsubscribe, err := container.Start(relayCtx)
	if err != nil {
		return err
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(container.Middleware()...)
	handler.RegisterRoutes(router, container.Handlers, cfg.Realtime.Path)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("Recipe BFF listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	container.Hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := unsubscribe(); err != nil {
		appLog.Warn("Failed to stop notification relay", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Failed to flush traces", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
	return nil
}
