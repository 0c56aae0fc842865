package relayhistory

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ava-labs/libevm/common"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/clickhouse"
	"github.com/ava-labs/bridge-relayer/pkg/clickhouse/mocks"
	"github.com/ava-labs/bridge-relayer/pkg/relay"
)

var _ relay.HistoryRecorder = (*Repository)(nil)

var recordedAt = time.UnixMilli(1_700_000_000_123).UTC()

func newTestRepository(conn *mocks.MockConn, cluster string) *Repository {
	cfg := clickhouse.Config{Database: "audit", Cluster: cluster}
	repo := NewRepository(clickhouse.NewWithConn(conn), cfg, "", 43114, "0xAbCdEf0000000000000000000000000000000001")
	repo.now = func() time.Time { return recordedAt }
	return repo
}

func testRecord(amount *big.Int) types.EventRecord {
	return types.EventRecord{
		TxHash:             common.HexToHash("0xAA"),
		BlockNumber:        97,
		LogIndex:           3,
		Sender:             common.HexToAddress("0x00000000000000000000000000000000000000Aa"),
		DestinationChainID: big.NewInt(1),
		Recipient:          common.HexToAddress("0x00000000000000000000000000000000000000Bb"),
		Token:              common.HexToAddress("0x00000000000000000000000000000000000000Cc"),
		Amount:             amount,
		TransactionID:      common.HexToHash("0x01"),
	}
}

func TestRepository_Initialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cluster   string
		onCluster bool
	}{
		{name: "single node"},
		{name: "cluster", cluster: "relayers", onCluster: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn := &mocks.MockConn{}
			conn.
				On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
					return strings.Contains(q, "CREATE TABLE IF NOT EXISTS audit.relay_history") &&
						strings.Contains(q, "amount           UInt256") &&
						strings.Contains(q, "ON CLUSTER relayers") == tt.onCluster
				})).
				Return(nil).Once()

			require.NoError(t, newTestRepository(conn, tt.cluster).Initialize(t.Context()))
			conn.AssertExpectations(t)
		})
	}
}

func TestRepository_Initialize_Error(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	createErr := errors.New("not enough privileges")
	conn.On("Exec", mock.Anything, mock.Anything).Return(createErr)

	require.ErrorIs(t, newTestRepository(conn, "").Initialize(t.Context()), createErr)
}

func TestRepository_Record(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amount  *big.Int
		outcome types.RelayOutcome
		want    string
	}{
		{
			name:    "delivered",
			amount:  big.NewInt(1_000),
			outcome: types.RelayOutcome{Delivered: true},
			want:    "1000",
		},
		{
			name:    "invalid amount",
			amount:  big.NewInt(0),
			outcome: types.RelayOutcome{Reason: "invalid amount"},
			want:    "0",
		},
		{
			name:    "nil amount",
			outcome: types.RelayOutcome{Reason: "invalid amount"},
			want:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn := &mocks.MockConn{}
			conn.
				On("Exec", mock.Anything, fmt.Sprintf(insertOutcomeQuery, "audit", DefaultTableName),
					uint64(43114),
					"0xabcdef0000000000000000000000000000000001",
					"0x0000000000000000000000000000000000000000000000000000000000000001",
					"0x00000000000000000000000000000000000000000000000000000000000000aa",
					uint64(97),
					uint32(3),
					"0x00000000000000000000000000000000000000aa",
					"0x00000000000000000000000000000000000000bb",
					"0x00000000000000000000000000000000000000cc",
					tt.want,
					tt.outcome.Delivered,
					tt.outcome.Reason,
					recordedAt,
				).
				Return(nil).Once()

			require.NoError(t, newTestRepository(conn, "").Record(t.Context(), testRecord(tt.amount), tt.outcome))
			conn.AssertExpectations(t)
		})
	}
}

func TestRepository_Record_Error(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	execErr := errors.New("timeout")
	args := []any{mock.Anything, mock.Anything}
	for range 13 {
		args = append(args, mock.Anything)
	}
	conn.On("Exec", args...).Return(execErr)

	err := newTestRepository(conn, "").Record(t.Context(), testRecord(big.NewInt(1)), types.RelayOutcome{Delivered: true})
	require.ErrorIs(t, err, execErr)
	require.ErrorContains(t, err, "0x0000000000000000000000000000000000000000000000000000000000000001")
}
