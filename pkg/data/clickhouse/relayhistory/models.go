package relayhistory

import "time"

// Row is one relay attempt as stored in the relay history table. Hashes and
// addresses are lowercase 0x-prefixed hex; Amount is a base-10 string.
type Row struct {
	EVMChainID    uint64
	Contract      string
	TransactionID string
	SourceTxHash  string
	BlockNumber   uint64
	LogIndex      uint32
	Sender        string
	Recipient     string
	Token         string
	Amount        string
	Delivered     bool
	Reason        string
	RecordedAt    time.Time
}
