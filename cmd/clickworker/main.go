// The click worker consumes click events from RabbitMQ and records them as
// durable per-click analytics rows. It batches deliveries and acks only
// after the batch transaction commits, so a crashed worker never loses
// acknowledged events.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/clickqueue"
	"github.com/shortkit/shortkit/internal/config"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
)

const (
	batchSize   = 100
	batchWindow = 2 * time.Second
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
	if cfg.AMQPURL == "" {
		sugar.Fatalw("AMQP_URL is required for the click worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseDSN, cfg.MigrationsPath)
	if err != nil {
		sugar.Fatalw("Failed to initialize store", "error", err.Error())
	}
	defer repo.Close()

	consumer, err := clickqueue.NewConsumer(cfg.AMQPURL, cfg.ClickQueue, batchSize)
	if err != nil {
		sugar.Fatalw("Failed to connect to rabbitmq", "error", err.Error())
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		sugar.Fatalw("Failed to register consumer", "error", err.Error())
	}

	sugar.Infow("Click worker started", "queue", cfg.ClickQueue)

	var events []models.ClickEvent
	var deliveries []amqp091.Delivery

	ticker := time.NewTicker(batchWindow)
	defer ticker.Stop()

	flush := func() {
		if len(events) == 0 {
			return
		}
		processBatch(repo, logger, events, deliveries)
		events, deliveries = nil, nil
	}

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				sugar.Warnw("Delivery channel closed")
				flush()
				return
			}

			var event models.ClickEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				sugar.Errorw("Undecodable click event, rejecting", "error", err.Error())
				d.Reject(false)
				continue
			}

			events = append(events, event)
			deliveries = append(deliveries, d)

			if len(events) >= batchSize {
				flush()
				ticker.Reset(batchWindow)
			}

		case <-ticker.C:
			flush()

		case <-ctx.Done():
			sugar.Infow("Shutting down")
			flush()
			return
		}
	}
}

func processBatch(repo *repository.PostgresRepository, logger *zap.Logger, events []models.ClickEvent, deliveries []amqp091.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repo.InsertClickEvents(ctx, events); err != nil {
		logger.Error("Failed to record click batch, requeueing",
			zap.Int("count", len(events)),
			zap.Error(err))
		for _, d := range deliveries {
			d.Nack(false, true)
		}
		return
	}

	for _, d := range deliveries {
		d.Ack(false)
	}
	logger.Info("Recorded click batch", zap.Int("count", len(events)))
}
