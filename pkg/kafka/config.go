package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	DefaultFlushTimeout = 15 * time.Second

	messageMaxBytes = 1048576 // 1MB, relay payloads are small
)

// ProducerConfig holds the configuration for the relay Kafka producer.
type ProducerConfig struct {
	Brokers      string        `env:"KAFKA_BROKERS"       envDefault:"localhost:9092"`
	Topic        string        `env:"KAFKA_TOPIC"         envDefault:"bridge-transfers"`
	ClientID     string        `env:"KAFKA_CLIENT_ID"     envDefault:"relayer"`
	EnableLogs   bool          `env:"KAFKA_ENABLE_LOGS"   envDefault:"false"` // Enable librdkafka client logs
	FlushTimeout time.Duration `env:"KAFKA_FLUSH_TIMEOUT" envDefault:"15s"`

	// Topic creation at startup
	EnsureTopic            bool `env:"KAFKA_ENSURE_TOPIC"             envDefault:"false"`
	TopicNumPartitions     int  `env:"KAFKA_TOPIC_NUM_PARTITIONS"     envDefault:"1"`
	TopicReplicationFactor int  `env:"KAFKA_TOPIC_REPLICATION_FACTOR" envDefault:"1"`

	SASL SASLConfig
}

// LoadProducerConfig loads the producer configuration from environment variables.
func LoadProducerConfig() (ProducerConfig, error) {
	cfg, err := env.ParseAs[ProducerConfig]()
	if err != nil {
		return ProducerConfig{}, fmt.Errorf("failed to parse kafka producer config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the config can be used to build a producer.
func (c ProducerConfig) Validate() error {
	if c.Brokers == "" {
		return errors.New("kafka brokers are required")
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	if err := c.SASL.Validate(); err != nil {
		return fmt.Errorf("invalid kafka sasl config: %w", err)
	}
	return nil
}

// TopicConfig returns the topic settings used by EnsureTopic.
func (c ProducerConfig) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.TopicNumPartitions,
		ReplicationFactor: c.TopicReplicationFactor,
	}
}

// ConfigMap builds the librdkafka producer configuration.
func (c ProducerConfig) ConfigMap() *kafka.ConfigMap {
	cfg := &kafka.ConfigMap{
		"bootstrap.servers": c.Brokers,
		"client.id":         c.ClientID,

		// Reliability: wait for all replicas to acknowledge
		"acks":               "all",
		"enable.idempotence": true,

		"linger.ms":        5,
		"compression.type": "lz4",

		"go.logs.channel.enable": c.EnableLogs,
		"message.max.bytes":      messageMaxBytes,
	}
	c.SASL.ApplyToConfigMap(cfg)
	return cfg
}

// AdminConfigMap builds the configuration for an admin client on the same cluster.
func (c ProducerConfig) AdminConfigMap() *kafka.ConfigMap {
	cfg := &kafka.ConfigMap{"bootstrap.servers": c.Brokers}
	c.SASL.ApplyToConfigMap(cfg)
	return cfg
}
