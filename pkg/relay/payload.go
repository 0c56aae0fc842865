package relay

import (
	"github.com/ava-labs/bridge-relayer/internal/types"
)

// Payload is the JSON document submitted to the destination for one event.
type Payload struct {
	SourceTransactionHash string       `json:"sourceTransactionHash"`
	SourceBlockNumber     uint64       `json:"sourceBlockNumber"`
	Payload               TransferBody `json:"payload"`
}

// TransferBody carries the transfer details. Amount is a base-10 string so
// that uint256 values survive JSON number handling on the receiving side.
type TransferBody struct {
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	UniqueBridgeTxID string `json:"uniqueBridgeTxId"`
}

// NewPayload builds the destination payload for rec. rec.Amount must be set.
func NewPayload(rec types.EventRecord) Payload {
	return Payload{
		SourceTransactionHash: rec.TxHash.Hex(),
		SourceBlockNumber:     rec.BlockNumber,
		Payload: TransferBody{
			Sender:           rec.Sender.Hex(),
			Recipient:        rec.Recipient.Hex(),
			Token:            rec.Token.Hex(),
			Amount:           rec.Amount.String(),
			UniqueBridgeTxID: rec.TransactionID.Hex(),
		},
	}
}
