package service

import "errors"

var (
	// ErrSessionNotFound is returned when a feedback call names an unknown
	// or expired session identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidStage is returned when an approval or rejection is applied
	// to a stage that does not accept that decision.
	ErrInvalidStage = errors.New("invalid stage for this decision")
)
