package relayer

import (
	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
)

// ComputeRange returns the block range the next iteration should scan and
// whether the iteration should proceed.
//
// The range ends depth blocks below latest. A cold start (no checkpoint)
// scans only that block. Otherwise the range starts depth blocks below the
// checkpoint so that the tail of the previous range is scanned again in case
// it was on a reverted branch. No scan happens until a block beyond the
// checkpoint is confirmed.
func ComputeRange(latest uint64, cp checkpointer.Checkpoint, depth uint64) (types.BlockRange, bool) {
	if latest < depth {
		return types.BlockRange{}, false
	}
	to := latest - depth

	last, ok := cp.Height()
	if !ok {
		return types.BlockRange{From: to, To: to}, true
	}

	var from uint64
	if last > depth {
		from = last - depth
	}
	r := types.BlockRange{From: from, To: to}
	return r, r.Valid() && to > last
}
