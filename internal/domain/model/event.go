// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"strings"
	"time"
)

// ActivityKind is the normalized kind of a workout.
type ActivityKind string

// Known activity kinds.
const (
	ActivityUnknown ActivityKind = "unknown"
	ActivityRunning ActivityKind = "running"
	ActivityWalking ActivityKind = "walking"
	ActivityCycling ActivityKind = "cycling"
)

// ParseActivityKind maps a canonical kind name back to its value.
// Anything unrecognized is ActivityUnknown.
func ParseActivityKind(s string) ActivityKind {
	switch ActivityKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActivityRunning:
		return ActivityRunning
	case ActivityWalking:
		return ActivityWalking
	case ActivityCycling:
		return ActivityCycling
	default:
		return ActivityUnknown
	}
}

// WorkoutRecord is a normalized workout. It is treated as immutable once
// stored; optional numeric fields are nil when the source did not carry a
// usable value.
type WorkoutRecord struct {
	ID               string       // dedup key
	Owner            string       // author public key
	Activity         ActivityKind // normalized activity kind
	DistanceKm       *float64     // nil when absent or malformed
	DurationSeconds  *int64       // nil when absent or malformed
	CreatedAt        int64        // unix seconds, authoritative event time
	CharityID        string       // only set when resolved against the registry
	StepCount        *int64       // nil when absent
	LinkedContextIDs []string     // challenge / event identifiers
}

// Distance returns the distance in km, zero when absent.
func (r WorkoutRecord) Distance() float64 {
	if r.DistanceKm == nil {
		return 0
	}
	return *r.DistanceKm
}

// Steps returns the step count, zero when absent.
func (r WorkoutRecord) Steps() int64 {
	if r.StepCount == nil {
		return 0
	}
	return *r.StepCount
}

// Duration returns the duration, zero when absent.
func (r WorkoutRecord) Duration() time.Duration {
	if r.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*r.DurationSeconds) * time.Second
}

// Time returns CreatedAt as a time.Time.
func (r WorkoutRecord) Time() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// LinkedTo reports whether the record is tagged against contextID.
func (r WorkoutRecord) LinkedTo(contextID string) bool {
	return slices.Contains(r.LinkedContextIDs, contextID)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
