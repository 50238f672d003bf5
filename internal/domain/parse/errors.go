package parse

import "errors"

// Sentinel error kinds for this package. Parsing itself never fails; these
// cover configuration only.
var (
	ErrUnknownLossMode = errors.New("unknown loss mode")
)
