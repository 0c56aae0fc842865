package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "relayer"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	// Relay status label values
	RelayDelivered     = "delivered"
	RelayFailed        = "failed"
	RelayInvalidAmount = "invalid_amount"

	// Iteration result label values
	IterationScanned = "scanned"
	IterationSkipped = "skipped"
	IterationFailed  = "failed"

	RPC        = "rpc"
	Relay      = "relay"
	Checkpoint = "checkpoint"
)

// Error type constants for iteration-level failures.
const (
	ErrTypeConnectivity     = "connectivity"
	ErrTypeRangeUnavailable = "range_unavailable"
	ErrTypeDecode           = "decode"
	ErrTypePersistence      = "persistence"
	ErrTypeRelayHistory     = "relay_history"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple relayer instances.
type Labels struct {
	EVMChainID    uint64 // source EVM chain ID
	Contract      string // bridge contract address being watched
	Environment   string // Deployment environment (e.g., "production", "staging")
	Region        string // Cloud region (e.g., "us-east-1")
	CloudProvider string // Cloud provider (e.g., "aws", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.EVMChainID != 0 {
		labels["evm_chain_id"] = strconv.FormatUint(l.EVMChainID, 10)
	}
	if l.Contract != "" {
		labels["contract"] = l.Contract
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Chain position
	chainHead        prometheus.Gauge
	lastScannedBlock prometheus.Gauge

	// Iterations
	iterations        *prometheus.CounterVec
	iterationDuration prometheus.Histogram
	eventsScanned     prometheus.Counter
	errors            *prometheus.CounterVec

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge

	// Relay metrics
	relays        *prometheus.CounterVec
	relayDuration prometheus.Histogram

	// Checkpoint metrics
	checkpointWrites        *prometheus.CounterVec
	checkpointWriteDuration prometheus.Histogram
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., evm_chain_id), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		chainHead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "chain_head",
			Help:      "Latest block height reported by the source node",
		}),
		lastScannedBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_scanned_block",
			Help:      "Block height stored in the checkpoint",
		}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "iterations_total",
			Help:      "Total poll iterations by result",
		}, []string{"result"}),
		iterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Time to run a single poll iteration end-to-end",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		eventsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_scanned_total",
			Help:      "Total TokensLocked events decoded from the source chain",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			// Buckets cover typical RPC latencies: 1ms, 5ms, 10ms, 25ms, 50ms,
			// 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Relay,
			Name:      "attempts_total",
			Help:      "Total relay attempts by status (delivered, failed, invalid_amount)",
		}, []string{"status"}),
		relayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Relay,
			Name:      "duration_seconds",
			Help:      "Time to submit a single event to the destination",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		checkpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Checkpoint,
			Name:      "writes_total",
			Help:      "Total checkpoint write attempts by status",
		}, []string{"status"}),
		checkpointWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Checkpoint,
			Name:      "write_duration_seconds",
			Help:      "Time taken to persist the checkpoint, including retries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	err := errors.Join(
		reg.Register(m.chainHead),
		reg.Register(m.lastScannedBlock),
		reg.Register(m.iterations),
		reg.Register(m.iterationDuration),
		reg.Register(m.eventsScanned),
		reg.Register(m.errors),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.relays),
		reg.Register(m.relayDuration),
		reg.Register(m.checkpointWrites),
		reg.Register(m.checkpointWriteDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// SetChainHead records the latest head reported by the source node.
func (m *Metrics) SetChainHead(height uint64) {
	if m == nil {
		return
	}
	m.chainHead.Set(float64(height))
}

// SetLastScannedBlock records the height stored in the checkpoint.
func (m *Metrics) SetLastScannedBlock(height uint64) {
	if m == nil {
		return
	}
	m.lastScannedBlock.Set(float64(height))
}

// RecordIteration records the result and duration of one poll iteration.
func (m *Metrics) RecordIteration(result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(result).Inc()
	m.iterationDuration.Observe(durationSeconds)
}

// AddEventsScanned adds the number of events decoded in one scan.
func (m *Metrics) AddEventsScanned(n int) {
	if m == nil {
		return
	}
	m.eventsScanned.Add(float64(n))
}

// RecordRPCCall records an RPC call with its method, status, and duration.
// Pass nil error for successful calls, non-nil for failures.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.rpcCalls.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRelay records one relay attempt. Invalid records never reach the
// destination and are recorded without a duration.
func (m *Metrics) RecordRelay(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(status).Inc()
	if status != RelayInvalidAmount {
		m.relayDuration.Observe(durationSeconds)
	}
}

// RecordCheckpointWrite records a checkpoint persistence attempt.
// Pass nil error for successful writes, non-nil for failures.
func (m *Metrics) RecordCheckpointWrite(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.checkpointWrites.WithLabelValues(status).Inc()
	m.checkpointWriteDuration.Observe(durationSeconds)
}
