package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/pkg/logger"
	"github.com/okian/evalboard/pkg/metrics"
)

// Store persists one snapshot. Save must be atomic: a failed Save leaves the
// previously saved snapshot readable. Load returns the empty snapshot when
// nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (model.Snapshot, error)
	Save(ctx context.Context, snap model.Snapshot) error
}

// Synchronizer owns the snapshot of one source and serializes runs against
// it. Different Synchronizers may run concurrently.
type Synchronizer struct {
	key   string
	src   Source
	store Store
	opts  options
	mu    sync.Mutex
}

// New creates a Synchronizer for the source identified by key.
func New(key string, src Source, store Store, opts ...Option) *Synchronizer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(logger.String("source", key))
	return &Synchronizer{key: key, src: src, store: store, opts: o}
}

// Key returns the source key.
func (s *Synchronizer) Key() string { return s.key }

// Run loads the snapshot, sweeps the source and persists the result. A run
// that starts while another is in flight returns OutcomeBusy at once.
func (s *Synchronizer) Run(ctx context.Context) (Report, error) {
	if !s.mu.TryLock() {
		return Report{Outcome: OutcomeBusy}, fmt.Errorf("%s: %w", s.key, ErrBusy)
	}
	defer s.mu.Unlock()
	return s.run(ctx)
}

// Reset runs a full sweep from index 1, ignoring the persisted snapshot.
// The result replaces the snapshot only once it has been saved, so a failed
// reset leaves the previous snapshot in place.
func (s *Synchronizer) Reset(ctx context.Context) (Report, error) {
	if !s.mu.TryLock() {
		return Report{Outcome: OutcomeBusy}, fmt.Errorf("%s: %w", s.key, ErrBusy)
	}
	defer s.mu.Unlock()

	runID := s.opts.newRunID()
	log := s.opts.logger.With(logger.String("run_id", runID))
	log.Info(ctx, "full resync requested")
	return s.sweepFrom(ctx, model.Snapshot{}, runID, log)
}

// Snapshot returns the persisted snapshot.
func (s *Synchronizer) Snapshot(ctx context.Context) (model.Snapshot, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w: %w", s.key, ErrLoadFailure, err)
	}
	return snap, nil
}

func (s *Synchronizer) run(ctx context.Context) (Report, error) {
	runID := s.opts.newRunID()
	log := s.opts.logger.With(logger.String("run_id", runID))

	state, err := s.store.Load(ctx)
	if err != nil {
		rep := Report{RunID: runID, Outcome: OutcomeLoadFailed}
		s.record(rep)
		log.Error(ctx, "snapshot load failed", logger.Error(err))
		return rep, fmt.Errorf("%s: %w: %w", s.key, ErrLoadFailure, err)
	}

	return s.sweepFrom(ctx, state, runID, log)
}

func (s *Synchronizer) sweepFrom(ctx context.Context, state model.Snapshot, runID string, log logger.Logger) (Report, error) {
	next, rep, err := sweep(ctx, state, s.src, s.opts, runID)
	if err != nil {
		s.record(rep)
		switch {
		case errors.Is(err, ErrAborted):
			log.Warn(ctx, "sweep aborted, progress discarded", logger.Error(err))
		default:
			log.Error(ctx, "sweep failed", logger.Error(err))
		}
		return rep, fmt.Errorf("%s: %w", s.key, err)
	}

	if rep.Outcome == OutcomeUpdated {
		if err := s.store.Save(ctx, next); err != nil {
			rep.Outcome = OutcomePersistFailed
			s.record(rep)
			log.Error(ctx, "snapshot save failed", logger.Error(err))
			return rep, fmt.Errorf("%s: %w: %w", s.key, ErrPersistFailure, err)
		}
		state = next
	}

	s.record(rep)
	metrics.UpdateSnapshot(s.key, state.HighWaterMark, len(state.Records))
	log.Info(ctx, "sync finished",
		logger.String("outcome", string(rep.Outcome)),
		logger.Int("remote", rep.Remote),
		logger.Int("fetched", rep.Fetched),
		logger.Int("skipped", len(rep.Skipped)),
		logger.Int("records", len(state.Records)),
		logger.Duration("duration", rep.Duration))
	return rep, nil
}

func (s *Synchronizer) record(rep Report) {
	metrics.RecordSyncRun(s.key, string(rep.Outcome))
	metrics.RecordRecordsFetched(s.key, rep.Fetched)
	metrics.RecordRecordsSkipped(s.key, len(rep.Skipped))
	metrics.RecordFetchRetries(s.key, rep.Retries)
	metrics.RecordSyncDuration(s.key, float64(rep.Duration.Milliseconds()))
	switch rep.Outcome {
	case OutcomeUpdated, OutcomeNoNewData:
	default:
		metrics.RecordErrorByComponent("syncer", string(rep.Outcome))
	}
}
