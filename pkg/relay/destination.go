package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/ava-labs/bridge-relayer/pkg/kafka"
)

// maxBodySnippet bounds how much of a rejected response body ends up in errors.
const maxBodySnippet = 256

// Destination accepts relayed events.
type Destination interface {
	Submit(ctx context.Context, p Payload) error
}

// HTTPDestination POSTs payloads as JSON. Any 2xx response is a success.
type HTTPDestination struct {
	endpoint string
	client   *resty.Client
}

var _ Destination = (*HTTPDestination)(nil)

// NewHTTPDestination returns a destination posting to endpoint.
func NewHTTPDestination(endpoint string) *HTTPDestination {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "bridge-relayer")
	return &HTTPDestination{endpoint: endpoint, client: client}
}

// Submit posts p and waits for the response. Timeouts come from ctx.
func (d *HTTPDestination) Submit(ctx context.Context, p Payload) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(p).
		Post(d.endpoint)
	if err != nil {
		return fmt.Errorf("post %s: %w", d.endpoint, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("destination returned %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}
	return nil
}

func snippet(body []byte) string {
	if len(body) > maxBodySnippet {
		return string(body[:maxBodySnippet]) + "..."
	}
	return string(body)
}

// Producer is the subset of kafka.Producer used to publish payloads.
type Producer interface {
	Produce(ctx context.Context, msg kafka.Msg) error
}

// KafkaDestination publishes payloads to a topic, keyed by the bridge
// transaction id so that redeliveries of one transfer land in one partition.
type KafkaDestination struct {
	producer Producer
	topic    string
}

var _ Destination = (*KafkaDestination)(nil)

func NewKafkaDestination(producer Producer, topic string) *KafkaDestination {
	return &KafkaDestination{producer: producer, topic: topic}
}

// Submit produces p and blocks until the broker confirms delivery.
func (d *KafkaDestination) Submit(ctx context.Context, p Payload) error {
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return d.producer.Produce(ctx, kafka.Msg{
		Topic: d.topic,
		Key:   []byte(p.Payload.UniqueBridgeTxID),
		Value: value,
		Headers: map[string]string{
			"content-type":       "application/json",
			"source-transaction": p.SourceTransactionHash,
		},
	})
}
