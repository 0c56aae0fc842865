// Package relay forwards decoded TokensLocked events to the destination system.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/metrics"
)

const DefaultTimeout = 10 * time.Second

var (
	// ErrDelivery wraps any failure to hand an event to the destination.
	ErrDelivery = errors.New("relay delivery failed")

	// ErrInvalidAmount marks events that are never submitted because their
	// amount is missing or not positive.
	ErrInvalidAmount = errors.New("invalid amount")
)

// HistoryRecorder stores relay outcomes for auditing.
type HistoryRecorder interface {
	Record(ctx context.Context, rec types.EventRecord, outcome types.RelayOutcome) error
}

// Dispatcher validates events and submits them to a single destination. It
// makes one attempt per event.
type Dispatcher struct {
	dest    Destination
	timeout time.Duration
	history HistoryRecorder
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

type Option func(*Dispatcher)

// WithTimeout bounds each Submit call. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithHistory appends every outcome to h.
func WithHistory(h HistoryRecorder) Option {
	return func(disp *Dispatcher) {
		disp.history = h
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(disp *Dispatcher) {
		disp.metrics = m
	}
}

func NewDispatcher(dest Destination, log *zap.SugaredLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		dest:    dest,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Relay submits rec to the destination and reports the outcome. It never
// returns an error: failures are logged and described in the outcome.
func (d *Dispatcher) Relay(ctx context.Context, rec types.EventRecord) types.RelayOutcome {
	txID := rec.TransactionID.Hex()
	outcome := types.RelayOutcome{TransactionID: rec.TransactionID}

	if rec.Amount == nil || rec.Amount.Sign() <= 0 {
		d.log.Warnw("skipping event with invalid amount",
			"txID", txID,
			"amount", rec.Amount,
		)
		outcome.Reason = ErrInvalidAmount.Error()
		d.metrics.RecordRelay(metrics.RelayInvalidAmount, 0)
		d.recordHistory(ctx, rec, outcome)
		return outcome
	}

	d.log.Infow("relaying event to destination",
		"txID", txID,
		"block", rec.BlockNumber,
		"amount", rec.Amount.String(),
	)

	start := time.Now()
	submitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	err := d.dest.Submit(submitCtx, NewPayload(rec))
	cancel()
	elapsed := time.Since(start).Seconds()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDelivery, err)
		d.log.Errorw("failed to relay event",
			"txID", txID,
			"sourceTx", rec.TxHash.Hex(),
			"error", err,
		)
		outcome.Reason = err.Error()
		d.metrics.RecordRelay(metrics.RelayFailed, elapsed)
		d.recordHistory(ctx, rec, outcome)
		return outcome
	}

	d.log.Infow("relayed event",
		"txID", txID,
		"duration", elapsed,
	)
	outcome.Delivered = true
	d.metrics.RecordRelay(metrics.RelayDelivered, elapsed)
	d.recordHistory(ctx, rec, outcome)
	return outcome
}

func (d *Dispatcher) recordHistory(ctx context.Context, rec types.EventRecord, outcome types.RelayOutcome) {
	if d.history == nil {
		return
	}
	if err := d.history.Record(ctx, rec, outcome); err != nil {
		d.metrics.IncError(metrics.ErrTypeRelayHistory)
		d.log.Warnw("failed to record relay history",
			"txID", rec.TransactionID.Hex(),
			"error", err,
		)
	}
}
