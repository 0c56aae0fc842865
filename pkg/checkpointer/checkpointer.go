package checkpointer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPersistence is returned when a checkpoint cannot be durably written.
var ErrPersistence = errors.New("checkpoint persistence failed")

// Checkpoint records the last block whose range was fully scanned.
// A nil LastScannedBlock means the relayer has never completed a scan.
type Checkpoint struct {
	LastScannedBlock *uint64 `json:"last_scanned_block"`
}

// At returns a checkpoint positioned at height.
func At(height uint64) Checkpoint {
	return Checkpoint{LastScannedBlock: &height}
}

// Height returns the last scanned block and whether one is set.
func (c Checkpoint) Height() (uint64, bool) {
	if c.LastScannedBlock == nil {
		return 0, false
	}
	return *c.LastScannedBlock, true
}

func (c Checkpoint) String() string {
	if c.LastScannedBlock == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *c.LastScannedBlock)
}

// Checkpointer abstracts checkpoint persistence across different data stores. A store holds a
// single record per relayer: the last fully scanned block of the watched contract.
type Checkpointer interface {
	// Initialize ensures the underlying storage is ready (creates directories, tables, etc.). This
	// should be idempotent and safe to call multiple times.
	Initialize(ctx context.Context) error

	// Load returns the stored checkpoint. A missing record yields the zero Checkpoint and no
	// error. Backends that can tell an outage from an empty store return ErrPersistence instead.
	Load(ctx context.Context) (Checkpoint, error)

	// Save atomically replaces the stored checkpoint. Failures wrap ErrPersistence.
	Save(ctx context.Context, cp Checkpoint) error

	// Delete removes the stored checkpoint. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}

// SaveWithRetry persists cp, retrying failed writes up to cfg.MaxRetries times with
// cfg.RetryBackoff between attempts. Each attempt is bounded by cfg.WriteTimeout.
//
// The returned error wraps ErrPersistence and the last write error.
func SaveWithRetry(ctx context.Context, store Checkpointer, cp Checkpoint, cfg Config) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
		lastErr = store.Save(writeCtx, cp)
		cancel()

		if lastErr == nil {
			return nil
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(cfg.RetryBackoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrPersistence, ctx.Err())
			}
		}
	}

	if errors.Is(lastErr, ErrPersistence) {
		return fmt.Errorf("failed to write checkpoint (last scanned: %s) after %d attempts: %w",
			cp, cfg.MaxRetries+1, lastErr)
	}
	return fmt.Errorf("failed to write checkpoint (last scanned: %s) after %d attempts: %w: %w",
		cp, cfg.MaxRetries+1, ErrPersistence, lastErr)
}
