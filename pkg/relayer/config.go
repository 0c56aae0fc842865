package relayer

import (
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/libevm/common"

	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
)

const (
	DefaultPollInterval  = 15 * time.Second
	DefaultConfirmations = 6
)

// Config holds the orchestrator settings. It is built once at startup.
type Config struct {
	// Contract is the bridge contract emitting TokensLocked.
	Contract common.Address
	// Confirmations is the number of trailing blocks treated as not yet final.
	Confirmations uint64
	PollInterval  time.Duration
	Checkpoint    checkpointer.Config
}

func (c Config) Validate() error {
	if c.Contract == (common.Address{}) {
		return errors.New("bridge contract address must be set to a non-zero address")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.Checkpoint.WriteTimeout <= 0 {
		return fmt.Errorf("checkpoint write timeout must be positive, got %s", c.Checkpoint.WriteTimeout)
	}
	if c.Checkpoint.MaxRetries < 0 {
		return fmt.Errorf("checkpoint max retries must not be negative, got %d", c.Checkpoint.MaxRetries)
	}
	if c.Checkpoint.RetryBackoff < 0 {
		return fmt.Errorf("checkpoint retry backoff must not be negative, got %s", c.Checkpoint.RetryBackoff)
	}
	return nil
}
