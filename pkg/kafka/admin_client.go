package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// metadataTimeout is the timeout for Kafka metadata operations.
const metadataTimeout = 10 * time.Second

// TopicAdmin is the subset of *kafka.AdminClient used to manage the relay topic.
type TopicAdmin interface {
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	CreateTopics(ctx context.Context, topics []kafka.TopicSpecification, options ...kafka.CreateTopicsAdminOption) ([]kafka.TopicResult, error)
}

var _ TopicAdmin = (*kafka.AdminClient)(nil)

// TopicConfig holds Kafka topic configuration options for creation or validation.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// Validate checks if the TopicConfig is valid for topic creation.
func (tc TopicConfig) Validate() error {
	if tc.Name == "" {
		return errors.New("topic name cannot be empty")
	}
	if tc.NumPartitions <= 0 {
		return fmt.Errorf("number of partitions must be > 0, got %d", tc.NumPartitions)
	}
	if tc.ReplicationFactor <= 0 {
		return fmt.Errorf("replication factor must be > 0, got %d", tc.ReplicationFactor)
	}
	return nil
}

// lookupTopic returns the topic metadata, or nil if the topic does not exist.
func lookupTopic(admin TopicAdmin, name string) (*kafka.TopicMetadata, error) {
	metadata, err := admin.GetMetadata(&name, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for topic %q: %w", name, err)
	}

	topic, ok := metadata.Topics[name]
	if !ok || topic.Error.Code() == kafka.ErrUnknownTopicOrPart {
		return nil, nil
	}
	if topic.Error.Code() != kafka.ErrNoError {
		return nil, fmt.Errorf("topic %q has error: %w", name, topic.Error)
	}
	return &topic, nil
}

// EnsureTopic creates the relay topic if it does not exist.
//
// An existing topic is never modified; a partition count or replication
// factor that differs from config is only logged.
func EnsureTopic(ctx context.Context, admin TopicAdmin, config TopicConfig, log *zap.SugaredLogger) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid topic config: %w", err)
	}

	existing, err := lookupTopic(admin, config.Name)
	if err != nil {
		return err
	}

	if existing != nil {
		partitions := len(existing.Partitions)
		var rf int
		if partitions > 0 {
			rf = len(existing.Partitions[0].Replicas)
		}
		if partitions != config.NumPartitions || rf != config.ReplicationFactor {
			log.Warnw("topic exists with different settings, leaving as is",
				"topic", config.Name,
				"partitions", partitions,
				"desiredPartitions", config.NumPartitions,
				"replicationFactor", rf,
				"desiredReplicationFactor", config.ReplicationFactor)
			return nil
		}
		log.Infow("topic exists", "topic", config.Name, "partitions", partitions)
		return nil
	}

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             config.Name,
		NumPartitions:     config.NumPartitions,
		ReplicationFactor: config.ReplicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %q: %w", config.Name, err)
	}

	for _, result := range results {
		switch result.Error.Code() {
		case kafka.ErrNoError:
			log.Infow("created topic",
				"topic", result.Topic,
				"partitions", config.NumPartitions,
				"replicationFactor", config.ReplicationFactor)
		case kafka.ErrTopicAlreadyExists:
			// Another relayer won the race.
			log.Infow("topic already exists", "topic", result.Topic)
		default:
			return fmt.Errorf("failed to create topic %q: %w", result.Topic, result.Error)
		}
	}
	return nil
}
