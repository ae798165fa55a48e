package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"checkout-gateway/models"
)

// Publisher announces verified payments to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaPublisher creates a publisher for topic on the given brokers
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	return &KafkaPublisher{writer: writer, timeout: writer.WriteTimeout, logger: logger}
}

// Publish writes event keyed by its transaction or order id. It blocks until
// the brokers acknowledge or the write timeout expires.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}
	p.logger.Debug("Payment event published",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("key", event.Key()),
	)
	return nil
}

// Close flushes pending writes and closes the writer
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	p.logger.Info("Kafka publisher closed")
	return nil
}

// LogPublisher records events in the application log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a publisher that writes events to logger
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event models.PaymentEvent) error {
	p.logger.Info("Payment event",
		zap.String("event_id", event.ID),
		zap.String("gateway", event.Gateway),
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("payment_id", event.PaymentID),
		zap.Int64("amount", event.Amount),
		zap.String("state", event.State),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
