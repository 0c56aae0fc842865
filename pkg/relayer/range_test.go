package relayer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
)

func TestComputeRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		latest   uint64
		cp       checkpointer.Checkpoint
		depth    uint64
		expected types.BlockRange
		ok       bool
	}{
		{
			name:     "cold start scans the confirmed head only",
			latest:   100,
			cp:       checkpointer.Checkpoint{},
			depth:    6,
			expected: types.BlockRange{From: 94, To: 94},
			ok:       true,
		},
		{
			name:     "resume rewinds by the confirmation depth",
			latest:   103,
			cp:       checkpointer.At(94),
			depth:    6,
			expected: types.BlockRange{From: 88, To: 97},
			ok:       true,
		},
		{
			name:     "head behind checkpoint plus depth skips",
			latest:   96,
			cp:       checkpointer.At(94),
			depth:    6,
			expected: types.BlockRange{From: 88, To: 90},
			ok:       false,
		},
		{
			name:     "no block confirmed since the checkpoint skips",
			latest:   100,
			cp:       checkpointer.At(94),
			depth:    6,
			expected: types.BlockRange{From: 88, To: 94},
			ok:       false,
		},
		{
			name:     "one new confirmed block",
			latest:   101,
			cp:       checkpointer.At(94),
			depth:    6,
			expected: types.BlockRange{From: 88, To: 95},
			ok:       true,
		},
		{
			name:     "rewind clamps at genesis",
			latest:   103,
			cp:       checkpointer.At(3),
			depth:    6,
			expected: types.BlockRange{From: 0, To: 97},
			ok:       true,
		},
		{
			name:   "chain shorter than the confirmation depth",
			latest: 5,
			cp:     checkpointer.Checkpoint{},
			depth:  6,
			ok:     false,
		},
		{
			name:     "chain exactly the confirmation depth",
			latest:   6,
			cp:       checkpointer.Checkpoint{},
			depth:    6,
			expected: types.BlockRange{From: 0, To: 0},
			ok:       true,
		},
		{
			name:     "zero depth follows the head",
			latest:   101,
			cp:       checkpointer.At(100),
			depth:    0,
			expected: types.BlockRange{From: 100, To: 101},
			ok:       true,
		},
		{
			name:     "lagging node never moves the checkpoint backwards",
			latest:   90,
			cp:       checkpointer.At(94),
			depth:    6,
			expected: types.BlockRange{From: 88, To: 84},
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, ok := ComputeRange(tt.latest, tt.cp, tt.depth)
			require.Equal(t, tt.ok, ok)
			if tt.expected != (types.BlockRange{}) || tt.ok {
				require.Equal(t, tt.expected, r)
			}
		})
	}
}

func TestComputeRange_Properties(t *testing.T) {
	t.Parallel()

	for _, depth := range []uint64{0, 1, 6, 12} {
		for last := uint64(0); last < 40; last++ {
			for latest := uint64(0); latest < 60; latest++ {
				r, ok := ComputeRange(latest, checkpointer.At(last), depth)
				if !ok {
					continue
				}
				wantFrom := uint64(0)
				if last > depth {
					wantFrom = last - depth
				}
				require.Equal(t, wantFrom, r.From, "latest=%d last=%d depth=%d", latest, last, depth)
				require.LessOrEqual(t, r.From, r.To)
				require.Greater(t, r.To, last, "to must move past the checkpoint")
				require.LessOrEqual(t, last-r.From, depth, "rewind bounded by depth")
			}
		}
	}
}
