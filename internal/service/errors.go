package service

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the id within
	// the caller's tenant/app scope. A session owned by another tenant is
	// indistinguishable from a missing one.
	ErrSessionNotFound = errors.New("requirement session not found")

	// ErrInvalidTransition is returned when a status advance is not allowed
	// by the transition table.
	ErrInvalidTransition = errors.New("invalid session status transition")

	// ErrTurnInProgress is returned when a second analyze call races an
	// in-flight turn on the same session.
	ErrTurnInProgress = errors.New("another turn is already in progress for this session")

	// ErrUnknownStatus is returned when a requested target status is not one
	// of the known pipeline stages.
	ErrUnknownStatus = errors.New("unknown session status")
)
