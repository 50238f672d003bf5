package syncer

import "errors"

// Sentinel error kinds for synchronization.
var (
	// ErrSourceUnreachable means the source count could not be read or was zero.
	ErrSourceUnreachable = errors.New("source unreachable")
	// ErrRecordInvalid marks a record that is missing or has no usable result.
	// Sources wrap it so the sweep skips the record without retrying.
	ErrRecordInvalid = errors.New("record invalid")
	// ErrPersistFailure means the swept snapshot could not be saved.
	ErrPersistFailure = errors.New("snapshot persist failed")
	// ErrLoadFailure means the current snapshot could not be read.
	ErrLoadFailure = errors.New("snapshot load failed")
	// ErrAborted means the sweep was cancelled before it completed.
	ErrAborted = errors.New("sync aborted")
	// ErrBusy means another run holds the snapshot.
	ErrBusy = errors.New("sync already running")
)
