package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ava-labs/libevm/common"
	"github.com/ava-labs/libevm/crypto"
	libevmtypes "github.com/ava-labs/libevm/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/bridge-relayer/internal/chainclient"
	"github.com/ava-labs/bridge-relayer/pkg/metrics"
)

var (
	bridge    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
	token     = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type mockConnector struct {
	mock.Mock
}

func (m *mockConnector) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockConnector) FilterLogs(ctx context.Context, q chainclient.LogQuery) ([]libevmtypes.Log, error) {
	args := m.Called(ctx, q)
	logs, _ := args.Get(0).([]libevmtypes.Log)
	return logs, args.Error(1)
}

func txID(n int) [32]byte {
	var id [32]byte
	copy(id[:], common.LeftPadBytes(big.NewInt(int64(n)).Bytes(), 32))
	return id
}

func tokensLockedLog(t *testing.T, block uint64, index uint, amount int64, id int) libevmtypes.Log {
	t.Helper()
	data, err := tokensLockedData.Pack(recipient, token, big.NewInt(amount), txID(id))
	require.NoError(t, err)

	return libevmtypes.Log{
		Address: bridge,
		Topics: []common.Hash{
			TokensLockedTopic,
			common.BytesToHash(sender.Bytes()),
			common.BigToHash(big.NewInt(43114)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block*1000) + int64(index))),
		Index:       index,
	}
}

func TestTokensLockedTopic(t *testing.T) {
	t.Parallel()
	expected := crypto.Keccak256Hash([]byte("TokensLocked(address,uint256,address,address,uint256,bytes32)"))
	require.Equal(t, expected, TokensLockedTopic)
}

func TestDecode(t *testing.T) {
	t.Parallel()
	l := tokensLockedLog(t, 95, 2, 1_000_000, 7)

	rec, err := Decode(l)
	require.NoError(t, err)

	require.Equal(t, l.TxHash, rec.TxHash)
	require.Equal(t, uint64(95), rec.BlockNumber)
	require.Equal(t, uint(2), rec.LogIndex)
	require.Equal(t, sender, rec.Sender)
	require.Equal(t, big.NewInt(43114), rec.DestinationChainID)
	require.Equal(t, recipient, rec.Recipient)
	require.Equal(t, token, rec.Token)
	require.Equal(t, big.NewInt(1_000_000), rec.Amount)
	require.Equal(t, common.Hash(txID(7)), rec.TransactionID)
}

func TestDecode_Deterministic(t *testing.T) {
	t.Parallel()
	l := tokensLockedLog(t, 10, 0, 5, 1)

	first, err := Decode(l)
	require.NoError(t, err)
	second, err := Decode(l)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*libevmtypes.Log)
		errMsg string
	}{
		{
			name:   "wrong topic0",
			mutate: func(l *libevmtypes.Log) { l.Topics[0] = common.HexToHash("0xdead") },
			errMsg: "unexpected topic0",
		},
		{
			name:   "missing indexed topic",
			mutate: func(l *libevmtypes.Log) { l.Topics = l.Topics[:2] },
			errMsg: "expected 3 topics, got 2",
		},
		{
			name:   "no topics",
			mutate: func(l *libevmtypes.Log) { l.Topics = nil },
			errMsg: "expected 3 topics, got 0",
		},
		{
			name:   "truncated data",
			mutate: func(l *libevmtypes.Log) { l.Data = l.Data[:64] },
			errMsg: "unpack data",
		},
		{
			name:   "empty data",
			mutate: func(l *libevmtypes.Log) { l.Data = nil },
			errMsg: "unpack data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := tokensLockedLog(t, 50, 4, 1, 1)
			tt.mutate(&l)

			_, err := Decode(l)
			require.ErrorIs(t, err, ErrDecode)
			require.Contains(t, err.Error(), tt.errMsg)
			require.Contains(t, err.Error(), l.TxHash.Hex())
			require.Contains(t, err.Error(), "log 4")
		})
	}
}

func TestScan_EmptyRangeSkipsQuery(t *testing.T) {
	t.Parallel()
	conn := &mockConnector{}
	s := New(conn, bridge, zap.NewNop().Sugar(), nil)

	records, err := s.Scan(t.Context(), 10, 9)
	require.NoError(t, err)
	require.Empty(t, records)
	conn.AssertNotCalled(t, "FilterLogs", mock.Anything, mock.Anything)
}

func TestScan_QueriesContractAndTopic(t *testing.T) {
	t.Parallel()
	conn := &mockConnector{}
	want := chainclient.LogQuery{Address: bridge, Topic0: TokensLockedTopic, From: 88, To: 97}
	conn.On("FilterLogs", mock.Anything, want).Return([]libevmtypes.Log{}, nil).Once()

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	records, err := s.Scan(t.Context(), 88, 97)
	require.NoError(t, err)
	require.Empty(t, records)
	conn.AssertExpectations(t)
}

func TestScan_OrdersByBlockThenLogIndex(t *testing.T) {
	t.Parallel()
	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).Return([]libevmtypes.Log{
		tokensLockedLog(t, 96, 1, 10, 4),
		tokensLockedLog(t, 94, 7, 10, 2),
		tokensLockedLog(t, 96, 0, 10, 3),
		tokensLockedLog(t, 94, 3, 10, 1),
	}, nil)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	s := New(conn, bridge, zap.NewNop().Sugar(), m)
	records, err := s.Scan(t.Context(), 94, 97)
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i, rec := range records {
		require.Equal(t, common.Hash(txID(i+1)), rec.TransactionID, "record %d out of order", i)
	}
	for i := 1; i < len(records); i++ {
		require.True(t, records[i-1].Before(&records[i]))
	}

	count, err := testutil.GatherAndCount(reg, "relayer_events_scanned_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestScan_SkipsRemovedLogs(t *testing.T) {
	t.Parallel()
	removed := tokensLockedLog(t, 95, 0, 10, 9)
	removed.Removed = true
	// removed logs are never decoded, even when malformed
	removed.Data = nil

	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).Return([]libevmtypes.Log{
		removed,
		tokensLockedLog(t, 95, 1, 10, 1),
	}, nil)

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	records, err := s.Scan(t.Context(), 90, 96)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, common.Hash(txID(1)), records[0].TransactionID)
}

func TestScan_RangeUnavailableYieldsNothing(t *testing.T) {
	t.Parallel()
	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: missing trie node", chainclient.ErrRangeUnavailable))

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	records, err := s.Scan(t.Context(), 1, 2)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestScan_ConnectivityPropagates(t *testing.T) {
	t.Parallel()
	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: dial tcp: connection refused", chainclient.ErrConnectivity))

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	_, err := s.Scan(t.Context(), 1, 2)
	require.ErrorIs(t, err, chainclient.ErrConnectivity)
}

func TestScan_DecodeFailureFailsScan(t *testing.T) {
	t.Parallel()
	bad := tokensLockedLog(t, 95, 1, 10, 2)
	bad.Topics = bad.Topics[:1]

	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).Return([]libevmtypes.Log{
		tokensLockedLog(t, 95, 0, 10, 1),
		bad,
	}, nil)

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	records, err := s.Scan(t.Context(), 90, 96)
	require.ErrorIs(t, err, ErrDecode)
	require.Nil(t, records)
}

func TestScan_Idempotent(t *testing.T) {
	t.Parallel()
	logs := []libevmtypes.Log{
		tokensLockedLog(t, 95, 0, 10, 1),
		tokensLockedLog(t, 96, 0, 20, 2),
	}
	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).Return(logs, nil)

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	first, err := s.Scan(t.Context(), 90, 97)
	require.NoError(t, err)
	second, err := s.Scan(t.Context(), 90, 97)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestScan_OtherErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	conn := &mockConnector{}
	conn.On("FilterLogs", mock.Anything, mock.Anything).Return(nil, boom)

	s := New(conn, bridge, zap.NewNop().Sugar(), nil)
	_, err := s.Scan(t.Context(), 1, 2)
	require.ErrorIs(t, err, boom)
}
