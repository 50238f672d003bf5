// Package syncer merges a remote, append-only record set into a local
// snapshot one sweep at a time.
//
// A sweep reads the remote count, fetches every index above the snapshot's
// high-water mark in ascending order and only then advances the mark. A sweep
// that fails or is cancelled leaves the input snapshot untouched, so rerunning
// resumes from the same mark.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/pkg/logger"
)

// Source is the remote record set. Indices are 1-based and dense up to Count.
type Source interface {
	// Count returns the current number of remote records.
	Count(ctx context.Context) (int, error)
	// Record fetches one record. A missing or unusable record is reported
	// with an error wrapping ErrRecordInvalid.
	Record(ctx context.Context, index int) (model.RawRecord, error)
}

// Outcome is the result kind of a sweep or run.
type Outcome string

// Outcomes.
const (
	OutcomeUpdated           Outcome = "updated"
	OutcomeNoNewData         Outcome = "no_new_data"
	OutcomeSourceUnreachable Outcome = "source_unreachable"
	OutcomeAborted           Outcome = "aborted"
	OutcomePersistFailed     Outcome = "persist_failed"
	OutcomeLoadFailed        Outcome = "load_failed"
	OutcomeBusy              Outcome = "busy"
)

// Report describes one sweep.
type Report struct {
	RunID    string        `json:"run_id"`
	Outcome  Outcome       `json:"outcome"`
	Previous int           `json:"previous_mark"`
	Remote   int           `json:"remote_count"`
	Fetched  int           `json:"fetched"`
	Skipped  []int         `json:"skipped,omitempty"`
	Retries  int           `json:"retries"`
	Duration time.Duration `json:"duration_ns"`
}

// Sweep runs one synchronization pass over state. On OutcomeUpdated the
// returned snapshot is the merged state, which the caller must persist
// before treating the run as successful. For every other outcome the
// returned snapshot is state itself.
func Sweep(ctx context.Context, state model.Snapshot, src Source, opts ...Option) (model.Snapshot, Report, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return sweep(ctx, state, src, o, o.newRunID())
}

func sweep(ctx context.Context, state model.Snapshot, src Source, o options, runID string) (model.Snapshot, Report, error) {
	start := o.now()
	rep := Report{RunID: runID, Previous: state.HighWaterMark}
	log := o.logger.With(logger.String("run_id", runID))
	finish := func(outcome Outcome) {
		rep.Outcome = outcome
		rep.Duration = o.now().Sub(start)
	}

	count, err := call(ctx, o.callTimeout, src.Count)
	if err != nil || count <= 0 {
		finish(OutcomeSourceUnreachable)
		if err == nil {
			err = fmt.Errorf("remote reported %d records", count)
		}
		return state, rep, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
	}
	rep.Remote = count

	if count <= state.HighWaterMark {
		finish(OutcomeNoNewData)
		return state, rep, nil
	}

	log.Info(ctx, "sweep started",
		logger.Int("from", state.HighWaterMark+1),
		logger.Int("to", count))

	next := state.Clone()
	for i := state.HighWaterMark + 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			finish(OutcomeAborted)
			return state, rep, fmt.Errorf("%w at index %d: %w", ErrAborted, i, err)
		}

		rec, retries, err := fetch(ctx, src, i, o)
		rep.Retries += retries
		if err != nil {
			if ctx.Err() != nil {
				finish(OutcomeAborted)
				return state, rep, fmt.Errorf("%w at index %d: %w", ErrAborted, i, ctx.Err())
			}
			log.Warn(ctx, "record skipped", logger.Int("index", i), logger.Error(err))
			next.Skipped = append(next.Skipped, i)
			rep.Skipped = append(rep.Skipped, i)
			continue
		}

		rec.Index = i
		if strings.TrimSpace(rec.Name) == "" {
			rec.Name = model.DefaultName(i)
		}
		rec.FetchedAt = model.NewTimestamp(o.now())
		next.Records = append(next.Records, rec)
		rep.Fetched++
	}

	next.HighWaterMark = count
	next.LastUpdate = model.NewTimestamp(o.now())
	finish(OutcomeUpdated)
	return next, rep, nil
}

// fetch reads one record under the retry policy and reports how many
// retries it took. Invalid records are not retried.
func fetch(ctx context.Context, src Source, index int, o options) (model.RawRecord, int, error) {
	var (
		rec     model.RawRecord
		err     error
		retries int
	)
	for attempt := 1; attempt <= o.retry.Attempts; attempt++ {
		if attempt > 1 {
			retries++
			if werr := wait(ctx, o.retry.Backoff); werr != nil {
				return model.RawRecord{}, retries, werr
			}
		}
		rec, err = call(ctx, o.callTimeout, func(ctx context.Context) (model.RawRecord, error) {
			return src.Record(ctx, index)
		})
		if err == nil || errors.Is(err, ErrRecordInvalid) || ctx.Err() != nil {
			break
		}
	}
	return rec, retries, err
}

// call runs fn under its own timeout derived from ctx.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(cctx)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
