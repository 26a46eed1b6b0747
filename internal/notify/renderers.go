package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogRenderer writes each alert as a structured log line.
type LogRenderer struct {
	Logger *zap.Logger
}

func (r LogRenderer) Render(_ context.Context, a Alert) error {
	if r.Logger == nil {
		return nil
	}
	r.Logger.Info("alert",
		zap.String("id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("kind", string(a.Kind)),
		zap.String("subject", a.SubjectID),
		zap.String("priority", string(a.Priority)),
		zap.String("message", a.Message),
		zap.Time("expiresAt", a.ExpiresAt))
	return nil
}

// KafkaWriter is the subset of *kafka.Writer used by KafkaRenderer.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriteTimeout bounds a single alert publish so an unreachable broker
// cannot stall the emitter.
const KafkaWriteTimeout = 2 * time.Second

// KafkaRenderer publishes alerts as JSON keyed by subject.
type KafkaRenderer struct {
	writer  KafkaWriter
	timeout time.Duration
}

// NewKafkaWriter returns a writer for topic on brokers. Alerts are written one
// at a time, so batching is effectively off.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           KafkaWriteTimeout,
		MaxAttempts:            2,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaRenderer(w KafkaWriter) *KafkaRenderer {
	return &KafkaRenderer{writer: w, timeout: KafkaWriteTimeout}
}

func (r *KafkaRenderer) Render(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.SubjectID),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (r *KafkaRenderer) Close() error {
	return r.writer.Close()
}
