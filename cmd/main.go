// @title Badminton Platform Match Confirmation API
// @version 1.0
// @description Peer-confirmed match results and per-discipline ELO ratings.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/badminton-platform/config"
	"github.com/Dosada05/badminton-platform/db"
	"github.com/Dosada05/badminton-platform/handlers"
	"github.com/Dosada05/badminton-platform/notifications"
	"github.com/Dosada05/badminton-platform/rating"
	"github.com/Dosada05/badminton-platform/repositories"
	api "github.com/Dosada05/badminton-platform/routes"
	"github.com/Dosada05/badminton-platform/services"
	"github.com/Dosada05/badminton-platform/storage"
	"github.com/Dosada05/badminton-platform/telemetry"
)

const (
	serviceName     = "match-confirmation"
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("application exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.Bool("redis", cfg.RedisEnabled()),
		slog.Bool("archive", cfg.ArchiveEnabled()),
		slog.Bool("reminders", cfg.RemindersEnabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", slog.Any("error", err))
		}
	}()

	// Хранилище
	var (
		store  repositories.Store
		pinger handlers.Pinger
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		memory := repositories.NewMemoryStore(cfg.RatingInitial)
		if err := memory.SeedAccounts(cfg.SeedAccounts, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to seed accounts: %w", err)
		}
		store = memory
		logger.Warn("using in-memory storage, data is lost on restart", slog.Int("seeded_accounts", len(cfg.SeedAccounts)))
	default:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		if err := db.Migrate(ctx, dbConn); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		store = repositories.NewPostgresStore(dbConn, cfg.RatingInitial)
		pinger = dbConn
		logger.Info("database connection established")
	}

	// Уведомления
	hub := notifications.NewHub(logger)
	notifiers := []notifications.Notifier{notifications.NewLogNotifier(logger)}
	var relay *notifications.Relay
	if cfg.RedisEnabled() {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		notifiers = append(notifiers, notifications.NewRedisPublisher(redisClient, cfg.RedisChannel))
		relay = notifications.NewRelay(redisClient, cfg.RedisChannel, hub, logger)
	} else {
		notifiers = append(notifiers, notifications.NewHubNotifier(hub))
	}
	notifier := notifications.Multi(notifiers...)

	// Архив завершённых матчей (Cloudflare R2)
	var archiver services.MatchArchiver
	if cfg.ArchiveEnabled() {
		objectStore, err := storage.NewCloudflareR2Store(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 store: %w", err)
		}
		archiver = storage.NewMatchArchiver(objectStore)
		logger.Info("match archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	// Сервисы
	confirmationService := services.NewConfirmationService(
		store,
		rating.NewModel(cfg.RatingKFactor),
		notifier,
		archiver,
		logger,
		cfg.RatingMaxAttempts,
	)
	ratingService := services.NewRatingService(store)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if cfg.RemindersEnabled() {
		reminders := services.NewReminderService(store, notifier, logger, cfg.ReminderAfter)
		if _, err := reminders.Schedule(scheduler, cfg.ReminderInterval); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
		logger.Info("confirmation reminders scheduled",
			slog.Duration("interval", cfg.ReminderInterval),
			slog.Duration("after", cfg.ReminderAfter),
		)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	// HTTP
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Match:     handlers.NewMatchHandler(confirmationService),
		Account:   handlers.NewAccountHandler(confirmationService, ratingService),
		WebSocket: handlers.NewWebSocketHandler(hub, cfg.CORSAllowedOrigins, logger),
		Health:    handlers.NewHealthHandler(pinger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("application exited")
	return nil
}
