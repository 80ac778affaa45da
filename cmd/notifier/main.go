package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-bakery-orders/internal/config"
	kafkax "github.com/ariefcatur/go-bakery-orders/internal/kafka"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/notify"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-notifier"
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: service})

	if len(cfg.KafkaBrokers) == 0 {
		logging.Fatal().Msg("KAFKA_BROKERS is required")
	}
	if cfg.RedisAddr == "" {
		logging.Fatal().Msg("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Dedup:  &redisx.Dedup{Redis: rdb, Service: service},
		Cache:  &redisx.StatusCache{Redis: rdb},
		Sender: notify.LogSender{},
	}

	topics := []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged, orders.TopicCredentialIssued}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers)
	logging.Info().Str("group", cfg.NotifierGroup).Strs("topics", topics).
		Int("workers", cfg.NotifierWorkers).Msg("notifier consumer started")

	if err := cons.Start(ctx, svc.HandleMessage); err != nil {
		logging.Fatal().Err(err).Msg("consumer exit")
	}
	logging.Info().Msg("notifier stopped")
}
