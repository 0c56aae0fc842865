package scanner

import (
	"strings"

	"github.com/ava-labs/libevm/accounts/abi"
	"github.com/ava-labs/libevm/common"
)

const EventName = "TokensLocked"

// TokensLockedABI describes
//
//	TokensLocked(address indexed sender, uint256 indexed destinationChainId,
//	             address recipient, address token, uint256 amount, bytes32 transactionId)
const TokensLockedABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
			{"indexed": true, "internalType": "uint256", "name": "destinationChainId", "type": "uint256"},
			{"indexed": false, "internalType": "address", "name": "recipient", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "bytes32", "name": "transactionId", "type": "bytes32"}
		],
		"name": "TokensLocked",
		"type": "event"
	}
]`

var (
	tokensLocked = mustParseEvent(TokensLockedABI, EventName)

	// TokensLockedTopic is keccak256("TokensLocked(address,uint256,address,address,uint256,bytes32)").
	TokensLockedTopic common.Hash = tokensLocked.ID

	// tokensLockedData are the ABI arguments carried in the log data.
	tokensLockedData = tokensLocked.Inputs.NonIndexed()
)

func mustParseEvent(raw, name string) abi.Event {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("scanner: invalid event ABI: " + err.Error())
	}
	ev, ok := parsed.Events[name]
	if !ok {
		panic("scanner: event " + name + " missing from ABI")
	}
	return ev
}
