package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
	"github.com/ava-labs/bridge-relayer/pkg/clickhouse"
)

const DefaultTableName = "relayer_checkpoints"

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/write-checkpoint.sql
var writeCheckpointQuery string

//go:embed queries/read-checkpoint.sql
var readCheckpointQuery string

//go:embed queries/delete-checkpoint.sql
var deleteCheckpointQuery string

// Repository stores the relayer checkpoint in ClickHouse, one logical record
// per (EVM chain id, contract).
type Repository struct {
	client     clickhouse.Client
	database   string
	tableName  string
	onCluster  string
	evmChainID uint64
	contract   string
	now        func() time.Time
}

var _ checkpointer.Checkpointer = (*Repository)(nil)

// NewRepository returns a repository scoped to one chain and contract. The
// table is created by Initialize.
func NewRepository(
	client clickhouse.Client,
	cfg clickhouse.Config,
	tableName string,
	evmChainID uint64,
	contract string,
) *Repository {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &Repository{
		client:     client,
		database:   cfg.Database,
		tableName:  tableName,
		onCluster:  cfg.OnCluster(),
		evmChainID: evmChainID,
		contract:   strings.ToLower(contract),
		now:        time.Now,
	}
}

// Initialize ensures the checkpoints table exists.
// Schema:
//   - evm_chain_id: UInt64
//   - contract: String (lowercase hex)
//   - last_scanned_block: Nullable(UInt64)
//   - timestamp: Int64 microseconds, the ReplacingMergeTree version column
func (r *Repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(createTableQuery, r.database, r.tableName, r.onCluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: failed to create checkpoints table: %w", checkpointer.ErrPersistence, err)
	}
	return nil
}

// Load returns the latest checkpoint version. A missing row is a fresh start;
// a failed query is returned so that a storage outage is never mistaken for
// a fresh start.
func (r *Repository) Load(ctx context.Context) (checkpointer.Checkpoint, error) {
	var row Row
	query := fmt.Sprintf(readCheckpointQuery, r.database, r.tableName)
	err := r.client.Conn().
		QueryRow(ctx, query, r.evmChainID, r.contract).
		Scan(&row.LastScannedBlock, &row.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return checkpointer.Checkpoint{}, nil
		}
		return checkpointer.Checkpoint{}, fmt.Errorf("%w: failed to read checkpoint: %w", checkpointer.ErrPersistence, err)
	}
	return checkpointer.Checkpoint{LastScannedBlock: row.LastScannedBlock}, nil
}

// Save appends a new checkpoint version.
func (r *Repository) Save(ctx context.Context, cp checkpointer.Checkpoint) error {
	row := Row{
		EVMChainID:       r.evmChainID,
		Contract:         r.contract,
		LastScannedBlock: cp.LastScannedBlock,
		Timestamp:        r.now().UnixMicro(),
	}
	query := fmt.Sprintf(writeCheckpointQuery, r.database, r.tableName)
	err := r.client.Conn().
		Exec(ctx, query, row.EVMChainID, row.Contract, row.LastScannedBlock, row.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: failed to write checkpoint: %w", checkpointer.ErrPersistence, err)
	}
	return nil
}

// Delete removes every checkpoint version for this chain and contract.
func (r *Repository) Delete(ctx context.Context) error {
	query := fmt.Sprintf(deleteCheckpointQuery, r.database, r.tableName, r.onCluster)
	if err := r.client.Conn().Exec(ctx, query, r.evmChainID, r.contract); err != nil {
		return fmt.Errorf("%w: failed to delete checkpoint: %w", checkpointer.ErrPersistence, err)
	}
	return nil
}
