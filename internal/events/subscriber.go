package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// SubscriberConfig configures a consumer of the exam events topic
type SubscriberConfig struct {
	KafkaBrokers  []string
	TopicName     string
	ConsumerGroup string
	Logger        *slog.Logger
}

// EventHandler is invoked for every decoded event. Returning an error nacks the message.
type EventHandler func(ctx context.Context, event *ExamEvent) error

// Tail consumes events from Kafka until ctx is cancelled
func Tail(ctx context.Context, config SubscriberConfig, handle EventHandler) error {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               config.KafkaBrokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
		ConsumerGroup:         config.ConsumerGroup,
	}, watermill.NewSlogLogger(config.Logger))
	if err != nil {
		return fmt.Errorf("failed to create Kafka subscriber: %w", err)
	}
	defer subscriber.Close()

	messages, err := subscriber.Subscribe(ctx, config.TopicName)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", config.TopicName, err)
	}

	return Consume(ctx, messages, handle, config.Logger)
}

// Consume drains a message channel, decoding each message before handing it over
func Consume(ctx context.Context, messages <-chan *message.Message, handle EventHandler, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := DecodeMessage(msg)
			if err != nil {
				logger.Warn("Dropping undecodable message", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			if err := handle(ctx, event); err != nil {
				logger.Error("Event handler failed", "event_id", event.ID, "event_type", event.Type, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}
