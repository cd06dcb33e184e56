package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mobooking/internal/logger"
	"mobooking/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes booking lifecycle events, one topic per event type.
type Producer struct {
	Created       messageWriter
	StatusChanged messageWriter
	Logger        *logger.Logger
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewProducer(brokers []string, createdTopic, statusTopic string, l *logger.Logger) *Producer {
	return &Producer{
		Created:       newWriter(brokers, createdTopic),
		StatusChanged: newWriter(brokers, statusTopic),
		Logger:        l,
	}
}

// PublishBookingCreated streams the booking creation event to Kafka
func (p *Producer) PublishBookingCreated(ctx context.Context, event models.BookingEvent) error {
	return p.publish(ctx, p.Created, event)
}

// PublishBookingStatusChanged streams a status transition to Kafka
func (p *Producer) PublishBookingStatusChanged(ctx context.Context, event models.BookingEvent) error {
	return p.publish(ctx, p.StatusChanged, event)
}

// Events of one booking share a key so they land on one partition in order.
func (p *Producer) publish(ctx context.Context, w messageWriter, event models.BookingEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	p.Logger.LogKafka("PUBLISH", event.Type, fmt.Sprintf("booking %s status %s", event.BookingID, event.Status))

	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BookingID),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []messageWriter{p.Created, p.StatusChanged} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoopPublisher is used when Kafka is disabled. Events are only logged.
type NoopPublisher struct {
	Logger *logger.Logger
}

func (n NoopPublisher) PublishBookingCreated(ctx context.Context, event models.BookingEvent) error {
	n.Logger.Debug("KAFKA", fmt.Sprintf("kafka disabled, dropping %s for %s", event.Type, event.BookingID))
	return nil
}

func (n NoopPublisher) PublishBookingStatusChanged(ctx context.Context, event models.BookingEvent) error {
	n.Logger.Debug("KAFKA", fmt.Sprintf("kafka disabled, dropping %s for %s", event.Type, event.BookingID))
	return nil
}
