package services

import (
	"errors"
	"fmt"

	"fuelops-backend/internal/validation"
)

var (
	// ErrForbidden means the actor lacks the role or ownership the
	// operation requires.
	ErrForbidden = errors.New("actor is not allowed to perform this operation")

	// ErrNotFound means the request id does not exist.
	ErrNotFound = errors.New("fuel request not found")

	// ErrUpstreamUnavailable means the fleet-tracking system could not be
	// reached. Callers recover with the default vehicle spec; it is not a
	// hard failure unless persistence is also down.
	ErrUpstreamUnavailable = errors.New("vehicle spec provider unavailable")
)

// ValidationBlockedError is returned when a creation exceeds the physical
// tank capacity. It carries the full verdict so the caller can show the
// computed maximum and the suggested amount.
type ValidationBlockedError struct {
	Verdict validation.Verdict
}

func (e *ValidationBlockedError) Error() string {
	return fmt.Sprintf("requested amount exceeds tank capacity (max possible %.0fL)", e.Verdict.MaxPossible)
}

// InvalidTransitionError is returned when a state-machine precondition
// fails. It names the current and attempted state so clients know to
// refresh rather than retry.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move request from %q to %q", e.Current, e.Attempted)
}
