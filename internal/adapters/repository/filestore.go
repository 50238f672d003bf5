package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/pkg/logger"
)

const snapshotFileMode = 0o644

// FileStore keeps a snapshot as one JSON document. Saves go to a temporary
// file in the same directory that is synced and renamed over the target.
type FileStore struct {
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// NewFileStore creates a store for the JSON file at path.
func NewFileStore(path string, opts ...Option) *FileStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &FileStore{path: path, log: o.logger.With(logger.String("path", path))}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing file is the empty snapshot.
func (s *FileStore) Load(ctx context.Context) (snap model.Snapshot, err error) {
	defer func(start time.Time) { observe(BackendFile, "load", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Snapshot{}, nil
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, s.path, err)
	}
	if err := snap.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, s.path, err)
	}
	return snap, nil
}

// Save writes snap atomically.
func (s *FileStore) Save(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe(BackendFile, "save", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.log.Debug(ctx, "snapshot saved",
		logger.Int("high_water_mark", snap.HighWaterMark),
		logger.Int("records", len(snap.Records)))
	return nil
}

// Reset removes the snapshot file.
func (s *FileStore) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { observe(BackendFile, "reset", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	s.log.Info(ctx, "snapshot removed")
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, snapshotFileMode); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	tmpName = ""
	return nil
}
