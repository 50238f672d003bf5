// Package repository persists source snapshots. Every backend saves
// atomically: a failed Save leaves the previous snapshot loadable.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/evalboard/internal/domain/syncer"
	"github.com/okian/evalboard/pkg/logger"
	"github.com/okian/evalboard/pkg/metrics"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Store is a snapshot store that holds resources until closed. Reset removes
// the persisted snapshot so the next Load returns the empty one.
type Store interface {
	syncer.Store
	Reset(ctx context.Context) error
	Close() error
}

// Backends lists the names Open accepts.
func Backends() []string {
	return []string{BackendFile, BackendSQLite, BackendMemory}
}

// Open returns the store for backend at path. The empty backend is file.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(path, opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(path, opts...)
	case BackendMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

type options struct {
	logger logger.Logger
}

func defaultOptions() options {
	return options{logger: logger.Discard()}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// observe records the latency of one store operation and counts failures.
func observe(backend, op string, start time.Time, err error) {
	metrics.RecordRepositoryLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordErrorByComponent("repository", backend+"_"+op)
	}
}
