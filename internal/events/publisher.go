package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes booking lifecycle events to one topic, keyed by booking id so every
// event of a booking lands on the same partition in commit order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string, writeTimeout time.Duration) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: writeTimeout,
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

func newPublisherWithWriter(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.BookingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.BookingID, 10)),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	logger.ExternalServiceCall("kafka", "WriteMessages", "topic", p.topic, "type", event.Type, "bookingID", event.BookingID)
	err = p.writer.WriteMessages(ctx, msg)
	logger.ExternalServiceResult("kafka", "WriteMessages", err, "topic", p.topic, "bookingID", event.BookingID)
	if err != nil {
		return fmt.Errorf("publish %s for booking %d: %w", event.Type, event.BookingID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
