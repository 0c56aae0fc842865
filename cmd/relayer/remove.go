package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/bridge-relayer/pkg/clickhouse"
	"github.com/ava-labs/bridge-relayer/pkg/utils"
)

func remove(c *cli.Context) error {
	ctx := context.Background()
	sugar, err := utils.NewSugaredLogger(true, "")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	contract, err := parseContractAddress(c.String("contract-address"))
	if err != nil {
		return err
	}
	backend := strings.ToLower(c.String("checkpoint-backend"))
	if err := validateBackend(backend); err != nil {
		return err
	}
	evmChainID := c.Uint64("evm-chain-id")

	var chClient clickhouse.Client
	var chCfg clickhouse.Config
	if backend == backendClickHouse {
		if evmChainID == 0 {
			return errors.New("evm chain ID is required for the clickhouse backend")
		}
		chCfg, err = clickhouse.Load()
		if err != nil {
			return err
		}
		chClient, err = clickhouse.New(ctx, chCfg, sugar)
		if err != nil {
			return fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		defer chClient.Close()
	}

	store := newCheckpointStore(backend, c.String("state-file-path"), c.String("checkpoint-table-name"),
		chClient, chCfg, evmChainID, contract.Hex(), sugar)

	if err := store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	sugar.Infow("checkpoint successfully removed",
		"backend", backend,
		"contract", contract.Hex(),
		"evmChainID", evmChainID,
	)
	return nil
}
