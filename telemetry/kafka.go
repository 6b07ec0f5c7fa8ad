package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yatesdr/ablink/logging"
)

// KafkaConfig configures a KafkaSink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// BatchTimeout bounds how long the writer waits before flushing a
	// partially-filled batch.
	BatchTimeout time.Duration
}

// KafkaSink publishes tag events to a single Kafka topic, keyed by
// "<gateway>/<tag name>" so downstream consumers can partition per tag.
type KafkaSink struct {
	writer *kafka.Writer
	mu     sync.Mutex
	closed bool
}

// NewKafkaSink constructs a sink with a dedicated writer for cfg.Topic.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: timeout,
			Async:        true,
		},
	}
}

func (k *KafkaSink) Publish(e Event) {
	k.mu.Lock()
	closed := k.closed
	k.mu.Unlock()
	if closed {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		logging.DebugLog("telemetry", "kafka marshal error: %v", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.Gateway + "/" + e.TagName),
		Value: payload,
		Time:  e.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		logging.DebugLog("telemetry", "kafka write error: %v", err)
	}
}

func (k *KafkaSink) Close() error {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()
	return k.writer.Close()
}
