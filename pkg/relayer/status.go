package relayer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status is a point-in-time view of the relayer's position.
type Status struct {
	ChainHead        uint64  `json:"chain_head"`
	LastScannedBlock *uint64 `json:"last_scanned_block"`
	Lag              uint64  `json:"lag"`
}

// Status returns the last observed head and checkpoint.
func (o *Orchestrator) Status() Status {
	s := Status{ChainHead: o.head.Load()}
	if !o.hasScanned.Load() {
		return s
	}
	last := o.lastScanned.Load()
	s.LastScannedBlock = &last
	if s.ChainHead > last {
		s.Lag = s.ChainHead - last
	}
	return s
}

// StatusSource reports the relayer position.
type StatusSource interface {
	Status() Status
}

// StartLagWatchdog warns every interval while the checkpoint trails the chain
// head by more than maxLag blocks. It returns when ctx is canceled.
func StartLagWatchdog(ctx context.Context, log *zap.SugaredLogger, src StatusSource, interval time.Duration, maxLag uint64) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := src.Status()
			// nothing scanned yet: the first iteration reports its own progress
			if s.LastScannedBlock == nil {
				continue
			}
			if s.Lag > maxLag {
				log.Warnw("relayer lagging behind chain head",
					"lag", s.Lag,
					"head", s.ChainHead,
					"lastScannedBlock", *s.LastScannedBlock,
				)
			}
		}
	}
}
