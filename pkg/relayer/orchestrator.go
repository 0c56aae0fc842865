// Package relayer drives the scan, relay and checkpoint cycle.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/bridge-relayer/internal/chainclient"
	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
	"github.com/ava-labs/bridge-relayer/pkg/metrics"
	"github.com/ava-labs/bridge-relayer/pkg/scanner"
)

// Scanner returns the events emitted in an inclusive block range, in ledger order.
type Scanner interface {
	Scan(ctx context.Context, from, to uint64) ([]types.EventRecord, error)
}

// Dispatcher forwards a single event and reports what happened.
type Dispatcher interface {
	Relay(ctx context.Context, rec types.EventRecord) types.RelayOutcome
}

// Iteration summarizes one pass of the loop.
type Iteration struct {
	Head      uint64
	Range     types.BlockRange
	Skipped   bool
	Events    int
	Delivered int
	Failed    int
}

// Orchestrator runs iterations one at a time. Only the goroutine calling
// Run or RunOnce touches the checkpoint; Status is safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	connector  chainclient.Connector
	scanner    Scanner
	dispatcher Dispatcher
	store      checkpointer.Checkpointer
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
	newTicker  TickerFunc

	checkpoint checkpointer.Checkpoint
	restored   bool

	head        atomic.Uint64
	lastScanned atomic.Uint64
	hasScanned  atomic.Bool
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTicker replaces the wall-clock ticker used by Run.
func WithTicker(f TickerFunc) Option {
	return func(o *Orchestrator) {
		o.newTicker = f
	}
}

// New validates cfg and wires the collaborators. It performs no I/O.
func New(
	cfg Config,
	connector chainclient.Connector,
	eventScanner Scanner,
	dispatcher Dispatcher,
	store checkpointer.Checkpointer,
	log *zap.SugaredLogger,
	opts ...Option,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relayer config: %w", err)
	}
	if connector == nil || eventScanner == nil || dispatcher == nil || store == nil {
		return nil, errors.New("connector, scanner, dispatcher and checkpoint store are required")
	}

	o := &Orchestrator{
		cfg:        cfg,
		connector:  connector,
		scanner:    eventScanner,
		dispatcher: dispatcher,
		store:      store,
		log:        log,
		newTicker:  newTimeTicker,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes one iteration immediately and then one per tick until ctx is
// canceled. Iteration errors are logged and never stop the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Infow("starting relayer",
		"contract", o.cfg.Contract.Hex(),
		"confirmations", o.cfg.Confirmations,
		"pollInterval", o.cfg.PollInterval,
	)

	ticker := o.newTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.iterate(ctx)
	for {
		select {
		case <-ctx.Done():
			o.log.Infow("relayer stopped", "checkpoint", o.checkpoint.String())
			return nil
		case <-ticker.C():
			o.iterate(ctx)
		}
	}
}

func (o *Orchestrator) iterate(ctx context.Context) {
	it, err := o.RunOnce(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	o.log.Errorw("iteration failed",
		"head", it.Head,
		"from", it.Range.From,
		"to", it.Range.To,
		"checkpoint", o.checkpoint.String(),
		"error", err,
	)
}

// RunOnce performs a single iteration: read the head, compute the range, scan,
// relay every event in order and persist the new checkpoint.
//
// The checkpoint only advances once it has been persisted. Relay failures do
// not prevent the advance.
func (o *Orchestrator) RunOnce(ctx context.Context) (Iteration, error) {
	start := time.Now()
	var it Iteration

	if err := o.restore(ctx); err != nil {
		o.finish(metrics.IterationFailed, start)
		return it, err
	}

	latest, err := o.connector.BlockNumber(ctx)
	if err != nil {
		o.metrics.IncError(metrics.ErrTypeConnectivity)
		o.finish(metrics.IterationFailed, start)
		return it, fmt.Errorf("failed to fetch chain head: %w", err)
	}
	it.Head = latest
	o.head.Store(latest)
	o.metrics.SetChainHead(latest)

	r, ok := ComputeRange(latest, o.checkpoint, o.cfg.Confirmations)
	it.Range = r
	if !ok {
		it.Skipped = true
		o.log.Infow("no new confirmed blocks, waiting",
			"head", latest,
			"checkpoint", o.checkpoint.String(),
		)
		o.finish(metrics.IterationSkipped, start)
		return it, nil
	}

	if _, resumed := o.checkpoint.Height(); resumed {
		o.log.Infow("resuming scan, re-scanning for reorg safety", "from", r.From, "to", r.To)
	} else {
		o.log.Infow("first run, starting scan at confirmed head", "from", r.From, "to", r.To)
	}

	events, err := o.scanner.Scan(ctx, r.From, r.To)
	if err != nil {
		o.failScan(err, r)
		o.finish(metrics.IterationFailed, start)
		return it, fmt.Errorf("failed to scan %s: %w", r, err)
	}
	it.Events = len(events)

	for _, ev := range events {
		outcome := o.dispatcher.Relay(ctx, ev)
		if outcome.Delivered {
			it.Delivered++
		} else {
			it.Failed++
		}
	}

	next := checkpointer.At(r.To)
	saveStart := time.Now()
	err = checkpointer.SaveWithRetry(ctx, o.store, next, o.cfg.Checkpoint)
	o.metrics.RecordCheckpointWrite(err, time.Since(saveStart).Seconds())
	if err != nil {
		o.metrics.IncError(metrics.ErrTypePersistence)
		o.finish(metrics.IterationFailed, start)
		return it, err
	}

	o.checkpoint = next
	o.publishCheckpoint()

	o.log.Infow("iteration complete",
		"from", r.From,
		"to", r.To,
		"events", it.Events,
		"delivered", it.Delivered,
		"failed", it.Failed,
	)
	o.finish(metrics.IterationScanned, start)
	return it, nil
}

// Checkpoint returns the last persisted checkpoint known to the orchestrator.
func (o *Orchestrator) Checkpoint() checkpointer.Checkpoint {
	return o.checkpoint
}

func (o *Orchestrator) restore(ctx context.Context) error {
	if o.restored {
		return nil
	}
	if err := o.store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize checkpoint store: %w", err)
	}
	cp, err := o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	o.checkpoint = cp
	o.restored = true
	o.publishCheckpoint()
	o.log.Infow("loaded checkpoint", "lastScannedBlock", cp.String())
	return nil
}

func (o *Orchestrator) publishCheckpoint() {
	h, ok := o.checkpoint.Height()
	if !ok {
		return
	}
	o.lastScanned.Store(h)
	o.hasScanned.Store(true)
	o.metrics.SetLastScannedBlock(h)
}

func (o *Orchestrator) failScan(err error, r types.BlockRange) {
	switch {
	case errors.Is(err, scanner.ErrDecode):
		o.metrics.IncError(metrics.ErrTypeDecode)
		o.log.Errorw("malformed TokensLocked log, refusing to relay range",
			"from", r.From,
			"to", r.To,
			"error", err,
		)
	case errors.Is(err, chainclient.ErrConnectivity):
		o.metrics.IncError(metrics.ErrTypeConnectivity)
	}
}

func (o *Orchestrator) finish(result string, start time.Time) {
	o.metrics.RecordIteration(result, time.Since(start).Seconds())
}
