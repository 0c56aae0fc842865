package checkpoint

// Row is one stored version of a relayer checkpoint. The table keeps the row
// with the highest Timestamp per (EVMChainID, Contract).
type Row struct {
	EVMChainID       uint64  `json:"evm_chain_id"`
	Contract         string  `json:"contract"`
	LastScannedBlock *uint64 `json:"last_scanned_block"`
	Timestamp        int64   `json:"timestamp"`
}
