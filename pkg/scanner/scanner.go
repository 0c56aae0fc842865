// Package scanner finds and decodes TokensLocked events emitted by the bridge
// contract.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ava-labs/libevm/common"
	libevmtypes "github.com/ava-labs/libevm/core/types"
	"go.uber.org/zap"

	"github.com/ava-labs/bridge-relayer/internal/chainclient"
	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/metrics"
)

// ErrDecode is returned when a log matched by the filter cannot be decoded as
// a TokensLocked event.
var ErrDecode = errors.New("malformed TokensLocked log")

// Scanner queries one contract for TokensLocked events.
type Scanner struct {
	connector chainclient.Connector
	contract  common.Address
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
}

// New returns a Scanner for contract. m may be nil.
func New(connector chainclient.Connector, contract common.Address, log *zap.SugaredLogger, m *metrics.Metrics) *Scanner {
	return &Scanner{
		connector: connector,
		contract:  contract,
		log:       log,
		metrics:   m,
	}
}

// Scan returns the TokensLocked events emitted in [from, to], ordered by
// (block number, log index).
//
// An unavailable range yields no events and no error; the next iteration
// covers it again. Connectivity errors are returned unchanged. A single
// malformed log fails the whole scan with ErrDecode.
func (s *Scanner) Scan(ctx context.Context, from, to uint64) ([]types.EventRecord, error) {
	if from > to {
		return nil, nil
	}

	logs, err := s.connector.FilterLogs(ctx, chainclient.LogQuery{
		Address: s.contract,
		Topic0:  TokensLockedTopic,
		From:    from,
		To:      to,
	})
	if errors.Is(err, chainclient.ErrRangeUnavailable) {
		s.metrics.IncError(metrics.ErrTypeRangeUnavailable)
		s.log.Warnw("block range not available, possibly a reorg or a lagging node",
			"from", from,
			"to", to,
			"error", err,
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]types.EventRecord, 0, len(logs))
	for i := range logs {
		if logs[i].Removed {
			s.log.Debugw("skipping removed log",
				"txHash", logs[i].TxHash.Hex(),
				"logIndex", logs[i].Index,
			)
			continue
		}
		rec, err := Decode(logs[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Before(&records[j])
	})

	s.metrics.AddEventsScanned(len(records))
	if len(records) > 0 {
		s.log.Infow("found TokensLocked events",
			"count", len(records),
			"from", from,
			"to", to,
		)
	}
	return records, nil
}

// Decode converts a raw log into an EventRecord. The same log always yields
// the same record.
func Decode(l libevmtypes.Log) (types.EventRecord, error) {
	fail := func(format string, args ...any) (types.EventRecord, error) {
		return types.EventRecord{}, fmt.Errorf("%w (tx %s, log %d): %s",
			ErrDecode, l.TxHash.Hex(), l.Index, fmt.Sprintf(format, args...))
	}

	if len(l.Topics) < 3 {
		return fail("expected 3 topics, got %d", len(l.Topics))
	}
	if l.Topics[0] != TokensLockedTopic {
		return fail("unexpected topic0 %s", l.Topics[0].Hex())
	}

	values, err := tokensLockedData.Unpack(l.Data)
	if err != nil {
		return fail("unpack data: %v", err)
	}
	if len(values) != 4 {
		return fail("expected 4 data fields, got %d", len(values))
	}

	recipient, ok := values[0].(common.Address)
	if !ok {
		return fail("recipient has type %T", values[0])
	}
	token, ok := values[1].(common.Address)
	if !ok {
		return fail("token has type %T", values[1])
	}
	amount, ok := values[2].(*big.Int)
	if !ok {
		return fail("amount has type %T", values[2])
	}
	txID, ok := values[3].([32]byte)
	if !ok {
		return fail("transactionId has type %T", values[3])
	}

	return types.EventRecord{
		TxHash:             l.TxHash,
		BlockNumber:        l.BlockNumber,
		LogIndex:           l.Index,
		Sender:             common.BytesToAddress(l.Topics[1].Bytes()),
		DestinationChainID: new(big.Int).SetBytes(l.Topics[2].Bytes()),
		Recipient:          recipient,
		Token:              token,
		Amount:             amount,
		TransactionID:      common.Hash(txID),
	}, nil
}
