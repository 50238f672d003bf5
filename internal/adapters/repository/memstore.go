package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/evalboard/internal/domain/model"
)

// MemStore keeps the snapshot in memory. Readers get the last published
// copy without locking.
type MemStore struct {
	snap atomic.Pointer[model.Snapshot]
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	s := &MemStore{}
	s.snap.Store(&model.Snapshot{})
	return s
}

// Load returns a copy of the stored snapshot.
func (s *MemStore) Load(ctx context.Context) (model.Snapshot, error) {
	defer func(start time.Time) { observe(BackendMemory, "load", start, nil) }(time.Now())
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	return s.snap.Load().Clone(), nil
}

// Save publishes a copy of snap.
func (s *MemStore) Save(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe(BackendMemory, "save", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	c := snap.Clone()
	s.snap.Store(&c)
	return nil
}

// Reset drops the stored snapshot.
func (s *MemStore) Reset(context.Context) error {
	s.snap.Store(&model.Snapshot{})
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
