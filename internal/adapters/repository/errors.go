package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
	ErrUnknownBackend  = errors.New("unknown store backend")
	ErrClosed          = errors.New("store closed")
)
