package forward

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"siaguard/internal/config"
	"siaguard/internal/model"
)

// Forwarder publishes dispatched events to a Kafka topic, keyed by
// account id so per-panel ordering survives partitioning.
type Forwarder struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func New(cfg config.ForwardConfig, logger *slog.Logger) *Forwarder {
	if !cfg.Enabled {
		return nil
	}
	return &Forwarder{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

func (f *Forwarder) Publish(ctx context.Context, ev *model.Event) error {
	if f == nil || ev == nil {
		return nil
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.AccountID),
		Value: value,
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		if f.logger != nil {
			f.logger.Warn("kafka publish error", "err", err, "account", ev.AccountID)
		}
		return err
	}
	return nil
}

func (f *Forwarder) Close() error {
	if f == nil {
		return nil
	}
	return f.writer.Close()
}
