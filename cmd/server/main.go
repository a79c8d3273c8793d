package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Magnec/chatspace/internal/api"
	"github.com/Magnec/chatspace/internal/chat"
	"github.com/Magnec/chatspace/internal/config"
	"github.com/Magnec/chatspace/internal/db"
	"github.com/Magnec/chatspace/internal/mention"
	"github.com/Magnec/chatspace/internal/observ"
	"github.com/Magnec/chatspace/internal/presence"
	"github.com/Magnec/chatspace/internal/ratelimit"
	"github.com/Magnec/chatspace/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run() error {
	// Missing .env is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connection established", zap.String("addr", redisOpts.Addr))

	rooms := postgres.NewRoomStore(database.Pool())
	users := postgres.NewUserStore(database.Pool())
	messages := postgres.NewMessageStore(database.Pool())
	notifications := postgres.NewNotificationStore(database.Pool())

	tracker := presence.NewTracker(redisClient)
	presenceSvc := presence.NewService(tracker, users, messages, logger)
	mentionSvc := mention.NewService(users, mention.NewStoreNotifier(notifications), logger)
	limiter := ratelimit.NewRedisLimiter(redisClient, ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	chatSvc := chat.NewService(messages, rooms, users, mentionSvc, limiter, presenceSvc, logger)

	handler := api.NewHandler(chatSvc, presenceSvc, users, notifications, cfg, logger,
		api.HealthCheck{Name: "postgres", Check: database.Health},
		api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)
	router := api.NewRouter(handler, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
