package testevents

import "errors"

// Sentinel errors of a simulation run.
var (
	ErrUnhealthy  = errors.New("service unhealthy")
	ErrNotSettled = errors.New("cache did not settle")
	ErrMismatch   = errors.New("ranking mismatch")
)
