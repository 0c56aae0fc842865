package chainclient

import (
	"context"
	"errors"

	"github.com/ava-labs/libevm/common"
	"github.com/ava-labs/libevm/core/types"
)

var (
	// ErrConnectivity is returned when the source node cannot be reached,
	// including after the single reconnect attempt.
	ErrConnectivity = errors.New("source node unreachable")

	// ErrRangeUnavailable is returned when the node is reachable but cannot
	// serve the requested log range (lagging node, pruned blocks, reorg at
	// the range boundary).
	ErrRangeUnavailable = errors.New("block range unavailable")
)

// LogQuery selects logs emitted by Address whose first topic is Topic0,
// within the inclusive block range [From, To].
type LogQuery struct {
	Address common.Address
	Topic0  common.Hash
	From    uint64
	To      uint64
}

// Connector reads the source chain.
type Connector interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q LogQuery) ([]types.Log, error)
}
