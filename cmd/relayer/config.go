package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ava-labs/libevm/common"
	"github.com/urfave/cli/v2"

	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
	"github.com/ava-labs/bridge-relayer/pkg/clickhouse"
	"github.com/ava-labs/bridge-relayer/pkg/kafka"
	"github.com/ava-labs/bridge-relayer/pkg/relayer"
)

const (
	destinationHTTP  = "http"
	destinationKafka = "kafka"

	backendFile       = "file"
	backendClickHouse = "clickhouse"
)

// Config holds all configuration for the relayer application
type Config struct {
	// Application settings
	Verbose  bool
	LogLevel string

	// Source chain settings
	RPCURL        string
	RPCTimeout    time.Duration
	EVMChainID    uint64
	Contract      common.Address
	Confirmations uint64
	PollInterval  time.Duration

	// Destination settings
	DestinationType     string
	DestinationEndpoint string
	RelayTimeout        time.Duration
	Kafka               kafka.ProducerConfig

	// Checkpoint settings
	CheckpointBackend   string
	StateFilePath       string
	CheckpointTableName string
	Checkpoint          checkpointer.Config

	// ClickHouse settings, used by the clickhouse backend and relay history
	ClickHouse            clickhouse.Config
	RelayHistoryEnabled   bool
	RelayHistoryTableName string

	LagWatchdogInterval time.Duration
	LagWatchdogMaxLag   uint64

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// RelayerConfig returns the orchestrator settings.
func (c *Config) RelayerConfig() relayer.Config {
	return relayer.Config{
		Contract:      c.Contract,
		Confirmations: c.Confirmations,
		PollInterval:  c.PollInterval,
		Checkpoint:    c.Checkpoint,
	}
}

// UsesClickHouse reports whether a ClickHouse connection is needed.
func (c *Config) UsesClickHouse() bool {
	return c.CheckpointBackend == backendClickHouse || c.RelayHistoryEnabled
}

// Validate rejects configurations the relayer cannot start with.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("source chain rpc url is required")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("rpc timeout must be positive, got %s", c.RPCTimeout)
	}
	if err := c.RelayerConfig().Validate(); err != nil {
		return err
	}

	switch c.DestinationType {
	case destinationHTTP:
		if c.DestinationEndpoint == "" {
			return errors.New("destination chain api endpoint is required for the http destination")
		}
	case destinationKafka:
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid destination type %q (expected %s or %s)", c.DestinationType, destinationHTTP, destinationKafka)
	}

	if err := validateBackend(c.CheckpointBackend); err != nil {
		return err
	}
	if c.UsesClickHouse() {
		if err := c.ClickHouse.Validate(); err != nil {
			return err
		}
	}

	if c.LagWatchdogInterval <= 0 {
		return fmt.Errorf("lag watchdog interval must be positive, got %s", c.LagWatchdogInterval)
	}
	return nil
}

// buildConfig builds a Config from CLI context flags and the environment
func buildConfig(c *cli.Context) (*Config, error) {
	contract, err := parseContractAddress(c.String("contract-address"))
	if err != nil {
		return nil, err
	}

	chCfg, err := clickhouse.Load()
	if err != nil {
		return nil, err
	}
	kafkaCfg, err := kafka.LoadProducerConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Verbose:             c.Bool("verbose"),
		LogLevel:            c.String("log-level"),
		RPCURL:              c.String("rpc-url"),
		RPCTimeout:          c.Duration("rpc-timeout"),
		EVMChainID:          c.Uint64("evm-chain-id"),
		Contract:            contract,
		Confirmations:       c.Uint64("confirmations"),
		PollInterval:        time.Duration(c.Uint64("poll-interval-seconds")) * time.Second,
		DestinationType:     strings.ToLower(c.String("destination-type")),
		DestinationEndpoint: c.String("destination-endpoint"),
		RelayTimeout:        c.Duration("relay-timeout"),
		Kafka:               kafkaCfg,
		CheckpointBackend:   strings.ToLower(c.String("checkpoint-backend")),
		StateFilePath:       c.String("state-file-path"),
		CheckpointTableName: c.String("checkpoint-table-name"),
		Checkpoint: checkpointer.Config{
			WriteTimeout: c.Duration("checkpoint-write-timeout"),
			MaxRetries:   c.Int("checkpoint-max-retries"),
			RetryBackoff: c.Duration("checkpoint-retry-backoff"),
		},
		ClickHouse:            chCfg,
		RelayHistoryEnabled:   c.Bool("relay-history-enabled"),
		RelayHistoryTableName: c.String("relay-history-table-name"),
		LagWatchdogInterval:   c.Duration("lag-watchdog-interval"),
		LagWatchdogMaxLag:     c.Uint64("lag-watchdog-max-lag"),
		MetricsHost:           c.String("metrics-host"),
		MetricsPort:           c.Int("metrics-port"),
		Environment:           c.String("environment"),
		Region:                c.String("region"),
		CloudProvider:         c.String("cloud-provider"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseContractAddress rejects malformed input and the all-zero placeholder
// address shipped in sample configurations.
func parseContractAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid bridge contract address %q", raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("placeholder bridge contract address detected, set BRIDGE_CONTRACT_ADDRESS to the deployed contract")
	}
	return addr, nil
}

func validateBackend(backend string) error {
	switch backend {
	case backendFile, backendClickHouse:
		return nil
	default:
		return fmt.Errorf("invalid checkpoint backend %q (expected %s or %s)", backend, backendFile, backendClickHouse)
	}
}

// resolveChainID checks the configured chain id against the node's.
// A zero configured id accepts whatever the node reports.
func resolveChainID(configured, reported uint64) (uint64, error) {
	if configured == 0 {
		return reported, nil
	}
	if configured != reported {
		return 0, fmt.Errorf("source node reports chain id %d, expected %d", reported, configured)
	}
	return configured, nil
}
