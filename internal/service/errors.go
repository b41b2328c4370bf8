package service

import "errors"

var (
	// ErrInvalidTransition rejects a lifecycle transition from an illegal
	// state, e.g. starting a completed visit.
	ErrInvalidTransition = errors.New("invalid visit transition")

	// ErrNoRouteAvailable means no route and no matching template exist
	// for the requested advisor and date.
	ErrNoRouteAvailable = errors.New("no route available")

	// ErrMissingRequiredField is raised when a required field cannot be
	// resolved even after default substitution.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrNotFound covers lookups of visits or routes by id.
	ErrNotFound = errors.New("not found")
)
