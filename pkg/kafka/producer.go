package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Msg is a single record to produce.
type Msg struct {
	Topic   string
	Value   []byte
	Key     []byte
	Headers map[string]string
}

// Producer is a synchronous Kafka producer.
//
// Produce blocks until a delivery confirmation is received from Kafka.
// A background goroutine drains producer events and surfaces fatal errors
// on Errors().
//
// Close MUST be called at least once to stop background goroutines and flush
// all in-flight messages.
type Producer struct {
	producer   *kafka.Producer
	log        *zap.SugaredLogger
	errCh      chan error
	eventsDone chan struct{}
	logsDone   chan struct{}
	closedCh   chan struct{}
	once       sync.Once
}

const queueFullRetryDelay = time.Second

// NewProducer creates a Kafka producer.
//
// The provided context controls the lifetime of background goroutines.
// Callers must call Close to flush messages and release resources.
func NewProducer(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*Producer, error) {
	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logsEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to get go.logs.channel.enable: %w", err)
	}

	q := &Producer{
		producer:   p,
		log:        log,
		errCh:      make(chan error, 1),
		eventsDone: make(chan struct{}),
		logsDone:   make(chan struct{}),
		closedCh:   make(chan struct{}),
	}

	if enabled, _ := logsEnabled.(bool); enabled {
		go q.forwardLogs(ctx)
	} else {
		close(q.logsDone)
	}

	go q.monitorEvents(ctx)

	return q, nil
}

// Produce synchronously produces a message to Kafka.
//
// Produce blocks until either a delivery report is received or ctx is done.
// If the local queue is full the enqueue is retried every second until ctx
// expires.
//
// If ctx is canceled before the delivery report arrives, Produce returns
// ctx.Err() and the message MAY still be delivered afterwards.
func (q *Producer) Produce(ctx context.Context, msg Msg) error {
	deliveryCh := make(chan kafka.Event, 1)

	kMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &msg.Topic,
			Partition: kafka.PartitionAny,
		},
		Value:   msg.Value,
		Key:     msg.Key,
		Headers: toKafkaHeaders(msg.Headers),
	}

	if err := q.enqueue(ctx, kMsg, deliveryCh); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryCh:
		return q.handleDeliveryReport(e)
	}
}

// Close stops background goroutines and flushes pending messages.
//
// If timeout is reached before the queue drains, remaining messages are lost.
// Calling Close multiple times does nothing.
func (q *Producer) Close(timeout time.Duration) {
	q.once.Do(func() {
		q.log.Info("closing kafka producer")
		defer close(q.errCh)

		close(q.closedCh)
		<-q.eventsDone
		<-q.logsDone

		if pending := q.producer.Flush(int(timeout.Milliseconds())); pending > 0 {
			q.log.Warnw("flush incomplete, messages will be lost", "pending", pending)
		}

		q.producer.Close()
		q.log.Info("kafka producer closed")
	})
}

// Errors returns a channel that receives at most one fatal error.
// The channel is closed when the producer shuts down.
//
// After receiving an error the producer is no longer usable.
func (q *Producer) Errors() <-chan error {
	return q.errCh
}

// enqueue hands msg to librdkafka, waiting while the local queue is full.
func (q *Producer) enqueue(ctx context.Context, msg *kafka.Message, deliveryCh chan kafka.Event) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := q.producer.Produce(msg, deliveryCh)
		if err == nil {
			return nil
		}

		var kafkaErr kafka.Error
		if !errors.As(err, &kafkaErr) {
			return fmt.Errorf("failed to produce: %w", err)
		}
		if kafkaErr.Code() != kafka.ErrQueueFull {
			return classifyProduceError(kafkaErr)
		}

		q.log.Warnw("producer queue full, retrying", "delay", queueFullRetryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(queueFullRetryDelay):
		}
	}
}

func classifyProduceError(err kafka.Error) error {
	switch err.Code() {
	case kafka.ErrBrokerNotAvailable:
		return fmt.Errorf("broker not available: %w", err)
	case kafka.ErrInvalidMsgSize, kafka.ErrMsgSizeTooLarge:
		return fmt.Errorf("invalid message size: %w", err)
	case kafka.ErrInvalidMsg:
		return fmt.Errorf("invalid message: %w", err)
	case kafka.ErrUnknownTopicOrPart, kafka.ErrUnknownTopic:
		return fmt.Errorf("unknown topic or partition: %w", err)
	case kafka.ErrAuthentication:
		return fmt.Errorf("authentication error: %w", err)
	default:
		return fmt.Errorf("failed to produce: %w", err)
	}
}

func (q *Producer) forwardLogs(ctx context.Context) {
	defer close(q.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closedCh:
			return
		case entry, ok := <-q.producer.Logs():
			if !ok {
				return
			}
			q.log.Debugw("librdkafka", "level", entry.Level, "tag", entry.Tag, "message", entry.Message)
		}
	}
}

func (q *Producer) monitorEvents(ctx context.Context) {
	defer close(q.eventsDone)
	for {
		select {
		case <-ctx.Done():
			q.log.Debug("stopping kafka producer event monitor, context done")
			return
		case <-q.closedCh:
			return
		case ev, ok := <-q.producer.Events():
			if !ok {
				q.reportFatal(errors.New("kafka producer event channel closed"))
				return
			}

			switch e := ev.(type) {
			case *kafka.Message:
				// Delivery reports go to per-message channels; anything here
				// was produced without one.
				q.log.Warnw("unexpected delivery report on events channel",
					"topicPartition", e.TopicPartition.String())
			case kafka.Error:
				if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
					q.reportFatal(fmt.Errorf("fatal kafka error %#x: %w", e.Code(), e))
					return
				}
				q.log.Warnw("ignoring kafka error", "code", e.Code(), "error", e)
			case kafka.Stats:
				q.log.Debugw("kafka stats", "stats", e.String())
			default:
				q.log.Debugw("ignoring kafka event", "event", e.String())
			}
		}
	}
}

func (q *Producer) reportFatal(err error) {
	select {
	case q.errCh <- err:
	default:
		q.log.Warnw("kafka producer error dropped, error channel full", "error", err)
	}
}

func (q *Producer) handleDeliveryReport(ev kafka.Event) error {
	m, ok := ev.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %T", ev)
	}
	if err := m.TopicPartition.Error; err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	q.log.Debugw("delivered",
		"topic", *m.TopicPartition.Topic,
		"partition", m.TopicPartition.Partition,
		"offset", m.TopicPartition.Offset)
	return nil
}

// toKafkaHeaders converts headers in key order so produced records are deterministic.
func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}
