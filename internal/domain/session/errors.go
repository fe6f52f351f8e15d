package session

import "errors"

// Sentinel kinds for session lifecycle errors.
var (
	// ErrInvalidSession means a session cannot start, e.g. no class chosen.
	ErrInvalidSession = errors.New("invalid session")
	// ErrNotActive means ingestion or stop was attempted outside Active.
	ErrNotActive = errors.New("session not active")
	// ErrAlreadyActive means start was attempted while a session is running.
	ErrAlreadyActive = errors.New("session already active")
)
