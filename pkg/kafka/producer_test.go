package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestProducer(t *testing.T) *Producer {
	t.Helper()

	cfg := ProducerConfig{Brokers: "localhost:9092", Topic: "bridge-transfers", ClientID: "relayer-test"}
	producer, err := NewProducer(t.Context(), cfg.ConfigMap(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return producer
}

func TestNewProducer_ValidConfig(t *testing.T) {
	producer := newTestProducer(t)
	require.NotNil(t, producer)

	producer.Close(time.Second)
}

func TestProducer_Close_Idempotent(t *testing.T) {
	producer := newTestProducer(t)

	producer.Close(time.Second)
	producer.Close(time.Second)
}

func TestProducer_Errors_ChannelClosedAfterClose(t *testing.T) {
	producer := newTestProducer(t)

	errCh := producer.Errors()
	require.NotNil(t, errCh)

	producer.Close(time.Second)

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed after Close()")
}

func TestProducer_Produce_CanceledContext(t *testing.T) {
	producer := newTestProducer(t)
	defer producer.Close(time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := producer.Produce(ctx, Msg{Topic: "bridge-transfers", Value: []byte(`{}`)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProducer_HandleDeliveryReport(t *testing.T) {
	producer := newTestProducer(t)
	defer producer.Close(time.Second)

	topic := "bridge-transfers"

	t.Run("delivered", func(t *testing.T) {
		err := producer.handleDeliveryReport(&cKafka.Message{
			TopicPartition: cKafka.TopicPartition{Topic: &topic, Partition: 0, Offset: 42},
		})
		require.NoError(t, err)
	})

	t.Run("delivery error", func(t *testing.T) {
		brokerErr := cKafka.NewError(cKafka.ErrMsgTimedOut, "message timed out", false)
		err := producer.handleDeliveryReport(&cKafka.Message{
			TopicPartition: cKafka.TopicPartition{Topic: &topic, Error: brokerErr},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "delivery failed")
	})

	t.Run("unexpected event", func(t *testing.T) {
		err := producer.handleDeliveryReport(cKafka.NewError(cKafka.ErrAllBrokersDown, "down", false))
		require.Error(t, err)
		require.Contains(t, err.Error(), "unexpected delivery event")
	})
}

func TestClassifyProduceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		code   cKafka.ErrorCode
		prefix string
	}{
		{name: "broker not available", code: cKafka.ErrBrokerNotAvailable, prefix: "broker not available"},
		{name: "message too large", code: cKafka.ErrMsgSizeTooLarge, prefix: "invalid message size"},
		{name: "invalid message", code: cKafka.ErrInvalidMsg, prefix: "invalid message"},
		{name: "unknown topic", code: cKafka.ErrUnknownTopicOrPart, prefix: "unknown topic or partition"},
		{name: "authentication", code: cKafka.ErrAuthentication, prefix: "authentication error"},
		{name: "other", code: cKafka.ErrTimedOut, prefix: "failed to produce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kErr := cKafka.NewError(tt.code, "boom", false)
			err := classifyProduceError(kErr)
			require.ErrorContains(t, err, tt.prefix)

			var unwrapped cKafka.Error
			require.True(t, errors.As(err, &unwrapped))
			require.Equal(t, tt.code, unwrapped.Code())
		})
	}
}

func TestToKafkaHeaders(t *testing.T) {
	t.Parallel()

	require.Nil(t, toKafkaHeaders(nil))

	headers := toKafkaHeaders(map[string]string{"source-chain": "1", "event": "TokensLocked"})
	require.Len(t, headers, 2)
	require.Equal(t, "event", headers[0].Key)
	require.Equal(t, []byte("TokensLocked"), headers[0].Value)
	require.Equal(t, "source-chain", headers[1].Key)
	require.Equal(t, []byte("1"), headers[1].Value)
}
