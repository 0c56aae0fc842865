// Package relayhistory keeps an append-only audit trail of relay attempts in
// ClickHouse. It is never read back by the relayer.
package relayhistory

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/ava-labs/bridge-relayer/internal/types"
	"github.com/ava-labs/bridge-relayer/pkg/clickhouse"
)

const DefaultTableName = "relay_history"

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/insert-outcome.sql
var insertOutcomeQuery string

type Repository struct {
	client     clickhouse.Client
	database   string
	tableName  string
	onCluster  string
	evmChainID uint64
	contract   string
	now        func() time.Time
}

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

// Initialize ensures the relay history table exists.
func (r *Repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(createTableQuery, r.database, r.tableName, r.onCluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create relay history table: %w", err)
	}
	return nil
}

// Record appends one relay attempt.
func (r *Repository) Record(ctx context.Context, rec types.EventRecord, outcome types.RelayOutcome) error {
	row := r.toRow(rec, outcome)
	query := fmt.Sprintf(insertOutcomeQuery, r.database, r.tableName)
	err := r.client.Conn().Exec(ctx, query,
		row.EVMChainID,
		row.Contract,
		row.TransactionID,
		row.SourceTxHash,
		row.BlockNumber,
		row.LogIndex,
		row.Sender,
		row.Recipient,
		row.Token,
		row.Amount,
		row.Delivered,
		row.Reason,
		row.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record relay of %s: %w", row.TransactionID, err)
	}
	return nil
}

func (r *Repository) toRow(rec types.EventRecord, outcome types.RelayOutcome) Row {
	amount := "0"
	if rec.Amount != nil && rec.Amount.Sign() > 0 {
		amount = rec.Amount.String()
	}
	return Row{
		EVMChainID:    r.evmChainID,
		Contract:      r.contract,
		TransactionID: strings.ToLower(rec.TransactionID.Hex()),
		SourceTxHash:  strings.ToLower(rec.TxHash.Hex()),
		BlockNumber:   rec.BlockNumber,
		LogIndex:      uint32(rec.LogIndex),
		Sender:        strings.ToLower(rec.Sender.Hex()),
		Recipient:     strings.ToLower(rec.Recipient.Hex()),
		Token:         strings.ToLower(rec.Token.Hex()),
		Amount:        amount,
		Delivered:     outcome.Delivered,
		Reason:        outcome.Reason,
		RecordedAt:    r.now().UTC(),
	}
}
