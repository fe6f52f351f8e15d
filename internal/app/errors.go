package service

import "errors"

// Sentinel kinds for service lifecycle errors.
var (
	// ErrNotStarted means a session operation was attempted before Start.
	ErrNotStarted = errors.New("service not started")
)
