package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
	"github.com/ava-labs/bridge-relayer/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/bridge-relayer/pkg/data/clickhouse/relayhistory"
	"github.com/ava-labs/bridge-relayer/pkg/relay"
	"github.com/ava-labs/bridge-relayer/pkg/relayer"
)

// runFlags returns all CLI flags for the relayer run command.
// Kafka (KAFKA_*) and ClickHouse (CLICKHOUSE_*) settings are read from the
// environment only.
func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level override (debug, info, warn, error)",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:     "rpc-url",
			Aliases:  []string{"r"},
			Usage:    "The JSON-RPC URL of the source chain node",
			EnvVars:  []string{"SOURCE_CHAIN_RPC_URL"},
			Required: true,
		},
		&cli.DurationFlag{
			Name:    "rpc-timeout",
			Usage:   "The timeout for a single RPC call",
			EnvVars: []string{"RPC_TIMEOUT"},
			Value:   10 * time.Second,
		},
		&cli.Uint64Flag{
			Name:    "evm-chain-id",
			Aliases: []string{"C"},
			Usage:   "The expected EVM chain ID of the source chain (0 to accept the node's)",
			EnvVars: []string{"EVM_CHAIN_ID"},
		},
		&cli.Uint64Flag{
			Name:    "poll-interval-seconds",
			Aliases: []string{"i"},
			Usage:   "Seconds between two polling iterations",
			EnvVars: []string{"POLL_INTERVAL_SECONDS"},
			Value:   uint64(relayer.DefaultPollInterval / time.Second),
		},
		&cli.Uint64Flag{
			Name:    "confirmations",
			Aliases: []string{"c"},
			Usage:   "Number of trailing blocks treated as not yet final",
			EnvVars: []string{"BLOCK_CONFIRMATIONS"},
			Value:   relayer.DefaultConfirmations,
		},
		&cli.StringFlag{
			Name:    "destination-type",
			Aliases: []string{"d"},
			Usage:   "Where relayed events are sent (http or kafka)",
			EnvVars: []string{"DESTINATION_TYPE"},
			Value:   destinationHTTP,
		},
		&cli.StringFlag{
			Name:    "destination-endpoint",
			Usage:   "The destination chain API endpoint receiving relayed events",
			EnvVars: []string{"DESTINATION_CHAIN_API_ENDPOINT"},
		},
		&cli.DurationFlag{
			Name:    "relay-timeout",
			Usage:   "The timeout for delivering a single event",
			EnvVars: []string{"RELAY_TIMEOUT"},
			Value:   relay.DefaultTimeout,
		},
		&cli.DurationFlag{
			Name:    "checkpoint-write-timeout",
			Usage:   "The timeout for a single checkpoint write",
			EnvVars: []string{"CHECKPOINT_WRITE_TIMEOUT"},
			Value:   checkpointer.DefaultConfig().WriteTimeout,
		},
		&cli.IntFlag{
			Name:    "checkpoint-max-retries",
			Usage:   "Retries after a failed checkpoint write",
			EnvVars: []string{"CHECKPOINT_MAX_RETRIES"},
			Value:   checkpointer.DefaultConfig().MaxRetries,
		},
		&cli.DurationFlag{
			Name:    "checkpoint-retry-backoff",
			Usage:   "Pause between checkpoint write retries",
			EnvVars: []string{"CHECKPOINT_RETRY_BACKOFF"},
			Value:   checkpointer.DefaultConfig().RetryBackoff,
		},
		&cli.BoolFlag{
			Name:    "relay-history-enabled",
			Usage:   "Record every relay outcome in ClickHouse for auditing",
			EnvVars: []string{"RELAY_HISTORY_ENABLED"},
		},
		&cli.StringFlag{
			Name:    "relay-history-table-name",
			Usage:   "The ClickHouse table receiving relay outcomes",
			EnvVars: []string{"RELAY_HISTORY_TABLE_NAME"},
			Value:   relayhistory.DefaultTableName,
		},
		&cli.DurationFlag{
			Name:    "lag-watchdog-interval",
			Aliases: []string{"g"},
			Usage:   "The interval to check how far the checkpoint trails the chain head",
			EnvVars: []string{"LAG_WATCHDOG_INTERVAL"},
			Value:   time.Minute,
		},
		&cli.Uint64Flag{
			Name:    "lag-watchdog-max-lag",
			Aliases: []string{"G"},
			Usage:   "The lag in blocks above which a warning is logged",
			EnvVars: []string{"LAG_WATCHDOG_MAX_LAG"},
			Value:   100,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Aliases: []string{"P"},
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'oci', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
	}
	return append(flags, checkpointFlags()...)
}

func removeFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.Uint64Flag{
			Name:    "evm-chain-id",
			Aliases: []string{"C"},
			Usage:   "The EVM chain ID the checkpoint belongs to (clickhouse backend only)",
			EnvVars: []string{"EVM_CHAIN_ID"},
		},
	}
	return append(flags, checkpointFlags()...)
}

// checkpointFlags are shared by run and remove: both must resolve the same
// checkpoint record.
func checkpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "contract-address",
			Aliases:  []string{"a"},
			Usage:    "The bridge contract emitting TokensLocked",
			EnvVars:  []string{"BRIDGE_CONTRACT_ADDRESS"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "checkpoint-backend",
			Aliases: []string{"b"},
			Usage:   "Where the checkpoint is stored (file or clickhouse)",
			EnvVars: []string{"CHECKPOINT_BACKEND"},
			Value:   backendFile,
		},
		&cli.StringFlag{
			Name:    "state-file-path",
			Aliases: []string{"s"},
			Usage:   "The checkpoint file (file backend)",
			EnvVars: []string{"STATE_FILE_PATH"},
			Value:   checkpointer.DefaultStatePath,
		},
		&cli.StringFlag{
			Name:    "checkpoint-table-name",
			Aliases: []string{"T"},
			Usage:   "The checkpoint table (clickhouse backend)",
			EnvVars: []string{"CHECKPOINT_TABLE_NAME"},
			Value:   checkpoint.DefaultTableName,
		},
	}
}
