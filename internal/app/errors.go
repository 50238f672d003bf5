package service

import "errors"

// Sentinel error kinds for the service.
var (
	ErrUnknownSource = errors.New("unknown source")
	ErrNotStarted    = errors.New("service not started")
)
