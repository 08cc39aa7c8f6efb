package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ugc-marketplace/pkg/config"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("kafka.producer", fx.Provide(NewPublisher))

// Publisher emits domain events keyed by partition key.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type producer struct {
	p     *kafka.Producer
	topic string
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// NewPublisher returns a noop publisher when KAFKA.ADDR is empty.
func NewPublisher(lc fx.Lifecycle, cfg *config.Config) (Publisher, error) {
	if cfg.Kafka.Addrs == "" {
		zap.L().Info("[Kafka] brokers not configured, events disabled")
		return noopPublisher{}, nil
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Addrs,
		"client.id":          cfg.AppName,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	go drainEvents(p)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			timeout := 5 * time.Second
			if dl, ok := ctx.Deadline(); ok {
				timeout = time.Until(dl)
			}
			if left := p.Flush(int(timeout.Milliseconds())); left > 0 {
				zap.L().Warn("[Kafka] unflushed messages on shutdown", zap.Int("count", left))
			}
			p.Close()
			return nil
		},
	})

	zap.L().Info("[Kafka] producer ready", zap.String("brokers", cfg.Kafka.Addrs), zap.String("topic", cfg.Kafka.Topic))
	return &producer{p: p, topic: cfg.Kafka.Topic}, nil
}

// drainEvents logs asynchronous delivery failures.
func drainEvents(p *kafka.Producer) {
	for ev := range p.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				zap.L().Error("[Kafka] delivery failed", zap.String("key", string(e.Key)), zap.Error(e.TopicPartition.Error))
			}
		case kafka.Error:
			zap.L().Warn("[Kafka] producer error", zap.Error(e))
		}
	}
}

func (k *producer) Publish(ctx context.Context, key string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return k.p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
		Timestamp:      time.Now().UTC(),
	}, nil)
}
