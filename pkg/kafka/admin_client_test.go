package kafka

import (
	"context"
	"errors"
	"testing"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdmin struct {
	metadata  *cKafka.Metadata
	metaErr   error
	results   []cKafka.TopicResult
	createErr error
	created   []cKafka.TopicSpecification
}

func (f *fakeAdmin) GetMetadata(_ *string, _ bool, _ int) (*cKafka.Metadata, error) {
	return f.metadata, f.metaErr
}

func (f *fakeAdmin) CreateTopics(_ context.Context, topics []cKafka.TopicSpecification, _ ...cKafka.CreateTopicsAdminOption) ([]cKafka.TopicResult, error) {
	f.created = append(f.created, topics...)
	return f.results, f.createErr
}

func topicMetadata(name string, partitions, replicas int) *cKafka.Metadata {
	parts := make([]cKafka.PartitionMetadata, partitions)
	for i := range parts {
		parts[i] = cKafka.PartitionMetadata{ID: int32(i), Replicas: make([]int32, replicas)}
	}
	return &cKafka.Metadata{
		Topics: map[string]cKafka.TopicMetadata{
			name: {Topic: name, Partitions: parts},
		},
	}
}

func TestTopicConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}.Validate())
	require.ErrorContains(t, TopicConfig{NumPartitions: 1, ReplicationFactor: 1}.Validate(), "topic name cannot be empty")
	require.ErrorContains(t, TopicConfig{Name: "t", ReplicationFactor: 1}.Validate(), "number of partitions")
	require.ErrorContains(t, TopicConfig{Name: "t", NumPartitions: 1}.Validate(), "replication factor")
}

func TestEnsureTopic(t *testing.T) {
	t.Parallel()

	cfg := TopicConfig{Name: "bridge-transfers", NumPartitions: 3, ReplicationFactor: 2}

	t.Run("creates missing topic", func(t *testing.T) {
		t.Parallel()
		admin := &fakeAdmin{
			metadata: &cKafka.Metadata{Topics: map[string]cKafka.TopicMetadata{}},
			results:  []cKafka.TopicResult{{Topic: cfg.Name}},
		}

		require.NoError(t, EnsureTopic(t.Context(), admin, cfg, zap.NewNop().Sugar()))
		require.Len(t, admin.created, 1)
		require.Equal(t, cfg.Name, admin.created[0].Topic)
		require.Equal(t, 3, admin.created[0].NumPartitions)
		require.Equal(t, 2, admin.created[0].ReplicationFactor)
	})

	t.Run("existing topic untouched", func(t *testing.T) {
		t.Parallel()
		admin := &fakeAdmin{metadata: topicMetadata(cfg.Name, 3, 2)}

		require.NoError(t, EnsureTopic(t.Context(), admin, cfg, zap.NewNop().Sugar()))
		require.Empty(t, admin.created)
	})

	t.Run("existing topic with different layout is only logged", func(t *testing.T) {
		t.Parallel()
		admin := &fakeAdmin{metadata: topicMetadata(cfg.Name, 1, 1)}

		require.NoError(t, EnsureTopic(t.Context(), admin, cfg, zap.NewNop().Sugar()))
		require.Empty(t, admin.created)
	})

	t.Run("lost creation race", func(t *testing.T) {
		t.Parallel()
		admin := &fakeAdmin{
			metadata: &cKafka.Metadata{Topics: map[string]cKafka.TopicMetadata{}},
			results: []cKafka.TopicResult{{
				Topic: cfg.Name,
				Error: cKafka.NewError(cKafka.ErrTopicAlreadyExists, "exists", false),
			}},
		}

		require.NoError(t, EnsureTopic(t.Context(), admin, cfg, zap.NewNop().Sugar()))
	})

	t.Run("creation failure", func(t *testing.T) {
		t.Parallel()
		admin := &fakeAdmin{
			metadata: &cKafka.Metadata{Topics: map[string]cKafka.TopicMetadata{}},
			results: []cKafka.TopicResult{{
				Topic: cfg.Name,
				Error: cKafka.NewError(cKafka.ErrTopicAuthorizationFailed, "denied", false),
			}},
		}

		require.ErrorContains(t, EnsureTopic(t.Context(), admin, cfg, zap.NewNop().Sugar()), "failed to create topic")
	})

	t.Run("metadata failure", func(t *testing.T) {
		t.Parallel()
		admin := &fakeAdmin{metaErr: errors.New("timeout")}

		require.ErrorContains(t, EnsureTopic(t.Context(), admin, cfg, zap.NewNop().Sugar()), "failed to get metadata")
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		require.ErrorContains(t, EnsureTopic(t.Context(), &fakeAdmin{}, TopicConfig{}, zap.NewNop().Sugar()), "invalid topic config")
	})
}
