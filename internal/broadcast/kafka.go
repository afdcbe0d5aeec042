package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"parkwell/internal/shared/config"
	"parkwell/pkg/logger"
)

// KafkaMirror tees every hub event into a Kafka topic so external
// consumers (dashboards, billing exports) see the same stream as the
// SSE clients.
type KafkaMirror struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logger.Logger
}

func NewKafkaMirror(cfg config.KafkaConfig, log *logger.Logger) (*KafkaMirror, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Timeout = 10 * time.Second
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Hash on spot id so all events for one spot land on one partition.
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaMirror{
		producer: producer,
		topic:    cfg.Topic,
		logger:   log,
	}, nil
}

func (m *KafkaMirror) Mirror(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to marshal broadcast event", "error", err)
		return
	}

	message := &sarama.ProducerMessage{
		Topic:     m.topic,
		Key:       sarama.StringEncoder(event.SpotID.String()),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: event.At,
	}

	if _, _, err := m.producer.SendMessage(message); err != nil {
		m.logger.Error("failed to mirror event to Kafka", "error", err, "type", string(event.Type))
	}
}

func (m *KafkaMirror) Close() error {
	return m.producer.Close()
}
