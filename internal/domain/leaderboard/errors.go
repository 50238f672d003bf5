package leaderboard

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownSortKey = errors.New("unknown sort key")
)
