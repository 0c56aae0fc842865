package clickhouse

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for a ClickHouse client.
//
// MaxBlockSize is the recommended maximum number of rows per block when
// reading; see https://clickhouse.com/docs/operations/settings/settings
type Config struct {
	Hosts                []string `env:"CLICKHOUSE_HOSTS"                 envSeparator:"," envDefault:"localhost:9000"`
	Cluster              string   `env:"CLICKHOUSE_CLUSTER"               envDefault:""` // empty for a single-node deployment
	Database             string   `env:"CLICKHOUSE_DATABASE"              envDefault:"default"`
	Username             string   `env:"CLICKHOUSE_USERNAME"              envDefault:"default"`
	Password             string   `env:"CLICKHOUSE_PASSWORD"              envDefault:""`
	Debug                bool     `env:"CLICKHOUSE_DEBUG"                 envDefault:"false"`
	UseTLS               bool     `env:"CLICKHOUSE_USE_TLS"               envDefault:"false"`
	InsecureSkipVerify   bool     `env:"CLICKHOUSE_INSECURE_SKIP_VERIFY"  envDefault:"false"`
	MaxExecutionTime     int      `env:"CLICKHOUSE_MAX_EXECUTION_TIME"    envDefault:"60"` // seconds
	DialTimeout          int      `env:"CLICKHOUSE_DIAL_TIMEOUT"          envDefault:"30"` // seconds
	MaxOpenConns         int      `env:"CLICKHOUSE_MAX_OPEN_CONNS"        envDefault:"5"`
	MaxIdleConns         int      `env:"CLICKHOUSE_MAX_IDLE_CONNS"        envDefault:"5"`
	ConnMaxLifetime      int      `env:"CLICKHOUSE_CONN_MAX_LIFETIME"     envDefault:"10"` // minutes
	BlockBufferSize      int      `env:"CLICKHOUSE_BLOCK_BUFFER_SIZE"     envDefault:"10"`
	MaxBlockSize         int      `env:"CLICKHOUSE_MAX_BLOCK_SIZE"        envDefault:"1000"`
	MaxCompressionBuffer int      `env:"CLICKHOUSE_MAX_COMPRESSION_BUFFER" envDefault:"10240"` // bytes
	ClientName           string   `env:"CLICKHOUSE_CLIENT_NAME"           envDefault:"bridge-relayer"`
	ClientVersion        string   `env:"CLICKHOUSE_CLIENT_VERSION"        envDefault:"1.0"`
}

// Load loads ClickHouse configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse clickhouse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that clickhouse.Open would otherwise reject late.
func (c Config) Validate() error {
	if len(c.Hosts) == 0 {
		return errors.New("at least one clickhouse host is required")
	}
	if c.Database == "" {
		return errors.New("clickhouse database is required")
	}
	if c.BlockBufferSize < 0 || c.BlockBufferSize > 255 {
		return fmt.Errorf("clickhouse block buffer size must be in [0, 255], got %d", c.BlockBufferSize)
	}
	return nil
}

// OnCluster returns the ON CLUSTER clause for DDL, or an empty string when
// no cluster is configured.
func (c Config) OnCluster() string {
	if c.Cluster == "" {
		return ""
	}
	return fmt.Sprintf("ON CLUSTER %s", c.Cluster)
}
