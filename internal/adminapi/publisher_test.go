package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"
)

type capturingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (writer *capturingWriter) WriteMessages(ctx context.Context, messages ...kafka.Message) error {
	writer.messages = append(writer.messages, messages...)
	return writer.err
}

func (writer *capturingWriter) Close() error {
	writer.closed = true
	return nil
}

func TestKafkaDecisionPublisherWritesKeyedJSON(t *testing.T) {
	t.Parallel()

	writer := &capturingWriter{}
	publisher := newKafkaDecisionPublisher(writer, DefaultDecisionTopic, zaptest.NewLogger(t))

	decision := Decision{ID: "d-1", Kind: DecisionProviderMatched, SubjectID: "job-1", TargetID: "u-1", Actor: "admin"}
	if err := publisher.Publish(context.Background(), decision); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(writer.messages) != 1 || string(writer.messages[0].Key) != "d-1" {
		t.Fatalf("unexpected messages %+v", writer.messages)
	}
	var decoded Decision
	if err := json.Unmarshal(writer.messages[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != DecisionProviderMatched || decoded.TargetID != "u-1" {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	if err := publisher.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to close")
	}
}

func TestKafkaDecisionPublisherWrapsWriteErrors(t *testing.T) {
	t.Parallel()

	writer := &capturingWriter{err: errors.New("leader not available")}
	publisher := newKafkaDecisionPublisher(writer, DefaultDecisionTopic, nil)
	if err := publisher.Publish(context.Background(), Decision{ID: "d-2"}); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestNewKafkaDecisionPublisherRequiresBrokers(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaDecisionPublisher(nil, "", nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	publisher, err := NewKafkaDecisionPublisher([]string{"localhost:9092"}, "", nil)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if publisher.topic != DefaultDecisionTopic {
		t.Fatalf("expected default topic, got %q", publisher.topic)
	}
	_ = publisher.Close()
}
