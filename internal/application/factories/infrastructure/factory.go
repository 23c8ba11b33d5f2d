package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"busticket/internal/config"
	"busticket/internal/infrastructure/kafka"
	"busticket/internal/infrastructure/postgres"
	"busticket/internal/infrastructure/redis"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Factory lazily opens shared connections and closes them together.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger

	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Postgres connects with retries and, when enabled, applies the schema.
func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	for i := 0; i < connectAttempts; i++ {
		pool, err = postgres.NewClient(ctx, f.cfg.Postgres)
		if err == nil {
			break
		}
		f.logger.Warn("postgres not ready, retrying",
			"attempt", i+1, "max_attempts", connectAttempts, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("init postgres after %d attempts: %w", connectAttempts, err)
	}

	if f.cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, f.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

func (f *Factory) KafkaProducer() *kafka.Producer {
	if f.producer == nil {
		f.producer = kafka.NewProducer(kafka.Config{
			Brokers: f.cfg.Kafka.Brokers,
			Topic:   f.cfg.Kafka.Topic,
		})
	}
	return f.producer
}

func (f *Factory) KafkaConsumer() *kafka.Consumer {
	if f.consumer == nil {
		f.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     f.cfg.Kafka.Brokers,
			Topic:       f.cfg.Kafka.Topic,
			GroupID:     f.cfg.Kafka.GroupID,
			StartOffset: f.cfg.Kafka.StartOffset,
		})
	}
	return f.consumer
}

func (f *Factory) Close() {
	if f.consumer != nil {
		if err := f.consumer.Close(); err != nil {
			f.logger.Error("close kafka consumer", "error", err)
		}
	}
	if f.producer != nil {
		if err := f.producer.Close(); err != nil {
			f.logger.Error("close kafka producer", "error", err)
		}
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
}
