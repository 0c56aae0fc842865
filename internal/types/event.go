package types

import (
	"math/big"

	"github.com/ava-labs/libevm/common"
)

// EventRecord is a decoded TokensLocked log. TransactionID is the idempotency
// key understood by the destination.
type EventRecord struct {
	TxHash             common.Hash    `json:"txHash"`
	BlockNumber        uint64         `json:"blockNumber"`
	LogIndex           uint           `json:"logIndex"`
	Sender             common.Address `json:"sender"`
	DestinationChainID *big.Int       `json:"destinationChainId"`
	Recipient          common.Address `json:"recipient"`
	Token              common.Address `json:"token"`
	Amount             *big.Int       `json:"amount"`
	TransactionID      common.Hash    `json:"transactionId"`
}

// Before reports whether r was emitted before o on the ledger.
func (r *EventRecord) Before(o *EventRecord) bool {
	if r.BlockNumber != o.BlockNumber {
		return r.BlockNumber < o.BlockNumber
	}
	return r.LogIndex < o.LogIndex
}

// RelayOutcome is the result of a single relay attempt. It is not persisted.
type RelayOutcome struct {
	TransactionID common.Hash
	Delivered     bool
	Reason        string
}
