package checkpointer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const DefaultStatePath = "state.json"

// FileStore keeps the checkpoint in a single JSON file:
//
//	{
//	  "last_scanned_block": 12345
//	}
//
// Saves write a temporary file in the same directory, fsync it and rename it
// over the target, so readers never observe a partial file.
type FileStore struct {
	fs   afero.Fs
	path string
	log  *zap.SugaredLogger
}

var _ Checkpointer = (*FileStore)(nil)

// NewFileStore returns a store for path on the OS filesystem.
func NewFileStore(path string, log *zap.SugaredLogger) *FileStore {
	return NewFileStoreWithFs(afero.NewOsFs(), path, log)
}

// NewFileStoreWithFs returns a store for path on fsys.
func NewFileStoreWithFs(fsys afero.Fs, path string, log *zap.SugaredLogger) *FileStore {
	if path == "" {
		path = DefaultStatePath
	}
	return &FileStore{fs: fsys, path: path, log: log}
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string {
	return s.path
}

// Initialize creates the checkpoint directory if needed.
func (s *FileStore) Initialize(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if dir == "." {
		return nil
	}
	if exists, err := afero.DirExists(s.fs, dir); err == nil && exists {
		return nil
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create checkpoint dir %s: %w", ErrPersistence, dir, err)
	}
	return nil
}

// Load reads the checkpoint file. A missing, unreadable or corrupt file is
// treated as "never scanned".
func (s *FileStore) Load(_ context.Context) (Checkpoint, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Infow("no checkpoint file, starting fresh", "path", s.path)
		return Checkpoint{}, nil
	}
	if err != nil {
		s.log.Warnw("failed to read checkpoint file, starting fresh", "path", s.path, "error", err)
		return Checkpoint{}, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		s.log.Warnw("corrupt checkpoint file, starting fresh", "path", s.path, "error", err)
		return Checkpoint{}, nil
	}
	return cp, nil
}

// Save atomically replaces the checkpoint file.
func (s *FileStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode checkpoint: %w", ErrPersistence, err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", ErrPersistence, dir, err)
	}
	tmpName := tmp.Name()

	if err := writeAndSync(tmp, raw); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmpName, err)
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %w", ErrPersistence, s.path, err)
	}
	return nil
}

// Delete removes the checkpoint file.
func (s *FileStore) Delete(_ context.Context) error {
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrPersistence, s.path, err)
	}
	return nil
}

func writeAndSync(f afero.File, raw []byte) error {
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
