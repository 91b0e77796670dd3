package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultDecisionTopic is the kafka topic decisions are published to.
const DefaultDecisionTopic = "admin-decisions"

// DecisionPublisher announces recorded decisions to other systems.
type DecisionPublisher interface {
	Publish(ctx context.Context, decision Decision) error
	Close() error
}

// NoopDecisionPublisher drops every decision.
type NoopDecisionPublisher struct{}

func (NoopDecisionPublisher) Publish(context.Context, Decision) error { return nil }

func (NoopDecisionPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaDecisionPublisher writes decisions as JSON messages keyed by decision id.
type KafkaDecisionPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaDecisionPublisher builds an asynchronous kafka writer for brokers.
func NewKafkaDecisionPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaDecisionPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("adminapi.publisher.empty_brokers")
	}
	if topic == "" {
		topic = DefaultDecisionTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaDecisionPublisher(writer, topic, logger), nil
}

func newKafkaDecisionPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaDecisionPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaDecisionPublisher{writer: writer, topic: topic, logger: logger}
}

func (publisher *KafkaDecisionPublisher) Publish(ctx context.Context, decision Decision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("adminapi.publisher.encode: %w", err)
	}
	message := kafka.Message{
		Key:   []byte(decision.ID),
		Value: payload,
	}
	if err := publisher.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("adminapi.publisher.write: %w", err)
	}
	publisher.logger.Debug("decision published",
		zap.String("topic", publisher.topic),
		zap.String("decision_id", decision.ID))
	return nil
}

func (publisher *KafkaDecisionPublisher) Close() error {
	return publisher.writer.Close()
}
