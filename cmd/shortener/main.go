package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/cache"
	"github.com/shortkit/shortkit/internal/clickqueue"
	"github.com/shortkit/shortkit/internal/config"
	"github.com/shortkit/shortkit/internal/handler"
	"github.com/shortkit/shortkit/internal/middleware"
	"github.com/shortkit/shortkit/internal/repository"
	"github.com/shortkit/shortkit/internal/service"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(".env"); err != nil {
		sugar.Debugw(".env file not found, relying on env vars", "error", err.Error())
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		sugar.Fatalw("Configuration error", "error", err.Error())
	}

	sugar.Infow("Configuration loaded",
		"server_address", cfg.ServerAddress,
		"base_url", cfg.BaseURL,
		"redis_addr", cfg.RedisAddr,
		"environment", cfg.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseDSN, cfg.MigrationsPath)
	if err != nil {
		sugar.Fatalw("Failed to initialize store", "error", err.Error())
	}
	defer repo.Close()

	redisCache, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		sugar.Fatalw("Failed to connect to redis", "error", err.Error())
	}
	defer redisCache.Close()

	var publisher service.ClickPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := clickqueue.NewPublisher(cfg.AMQPURL, cfg.ClickQueue)
		if err != nil {
			sugar.Fatalw("Failed to connect to rabbitmq", "error", err.Error())
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		sugar.Infow("Click analytics queue enabled", "queue", cfg.ClickQueue)
	}

	shortener := service.NewShortener(cfg.BaseURL, repo, redisCache, publisher, logger)
	auth := service.NewAuth(repo, redisCache, cfg.AuthSecret, logger)

	authMW := middleware.NewAuthMiddleware(auth, logger)
	limiter := middleware.NewRateLimiter(redisCache, logger)

	h := handler.NewHandler(shortener, auth, authMW, limiter, logger, !cfg.Production())

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: h.SetupRouter(),
	}

	go func() {
		sugar.Infow("Server starting", "address", cfg.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("Server failed", "error", err.Error())
		}
	}()

	<-ctx.Done()
	sugar.Infow("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err.Error())
	}

	// In-flight requests are done; drain queued click events before the
	// store and cache connections close.
	shortener.Close()
}
