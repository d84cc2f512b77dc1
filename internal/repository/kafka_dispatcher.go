package repository

import (
	"context"
	"strings"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/domain/repository"
	pkgkafka "OptionPulse/pkg/kafka"
)

// KafkaEventDispatcher implements Dispatcher over a Kafka topic. Events are
// keyed by signal key so one instrument's events stay ordered per partition.
type KafkaEventDispatcher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventDispatcher creates a Kafka-backed dispatcher.
func NewKafkaEventDispatcher(producer *pkgkafka.Producer, topic string) repository.Dispatcher {
	return &KafkaEventDispatcher{producer: producer, topic: topic}
}

func (d *KafkaEventDispatcher) Dispatch(ctx context.Context, ev *models.SignalEvent) error {
	return d.producer.Publish(ctx, d.topic, []byte(ev.Key.String()), eventPayload(ev))
}

func (d *KafkaEventDispatcher) DispatchBatch(ctx context.Context, evs []*models.SignalEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(evs))
	for i, ev := range evs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(ev.Key.String()),
			Value: eventPayload(ev),
		}
	}
	return d.producer.PublishBatch(ctx, d.topic, msgs)
}

func (d *KafkaEventDispatcher) Close() error {
	if d.producer != nil {
		return d.producer.Close()
	}
	return nil
}

func eventPayload(ev *models.SignalEvent) map[string]interface{} {
	return map[string]interface{}{
		"type":        string(ev.Type),
		"symbol":      ev.Key.Symbol,
		"strike":      ev.Key.Strike,
		"option_type": string(ev.Key.OptionType),
		"direction":   string(ev.Direction),
		"confidence":  ev.Confidence,
		"reasons":     strings.Join(ev.Reasons, "; "),
		"reason":      ev.Reason,
		"ts":          ev.Timestamp.UnixMilli(),
	}
}
