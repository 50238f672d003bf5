package source

import "errors"

// Sentinel error kinds for the HTTP source.
var (
	ErrStatus        = errors.New("unexpected status")
	ErrNotFound      = errors.New("record not found")
	ErrMissingResult = errors.New("record has no result")
	ErrDecode        = errors.New("decode response")
	ErrInvalidURL    = errors.New("invalid source url")
)
