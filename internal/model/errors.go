package model

import "errors"

// Sentinel errors shared across the scheduling core. Callers match them
// with errors.Is; HTTP handlers map them to response codes.
var (
	// ErrNotFound means a referenced person, question or answer record does
	// not exist. Surfaced to the caller, never retried.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict means an answer was registered against a record that is
	// already ANSWERED. The stored answer is never overwritten.
	ErrConflict = errors.New("answer already registered")

	// ErrUnknownCorrelation means an inbound response carried a token that
	// was already consumed or never issued.
	ErrUnknownCorrelation = errors.New("unknown correlation token")

	// ErrSettingsUnavailable means the settings provider has not been
	// initialized yet. Fatal at startup, transient during steady state.
	ErrSettingsUnavailable = errors.New("scheduler settings unavailable")
)
