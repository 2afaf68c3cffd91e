package baseline

import "errors"

var (
	// ErrBaselineUnavailable means no snapshot could be obtained. Callers
	// fall back to the locally computed leaderboard.
	ErrBaselineUnavailable = errors.New("baseline unavailable")
	// ErrDeltaBeforeCutoff marks a live delta that the baseline already covers.
	ErrDeltaBeforeCutoff = errors.New("delta predates baseline cutoff")
	// ErrDeltaForeignOwner marks a live delta of another owner.
	ErrDeltaForeignOwner = errors.New("delta of another owner")
	// ErrDeltaRepeated marks a live delta whose id was already merged.
	ErrDeltaRepeated = errors.New("delta repeated")
	// ErrMalformedSnapshot is returned by decoders for unusable content.
	ErrMalformedSnapshot = errors.New("malformed baseline snapshot")
	// ErrNotTracking is returned when no owner is being tracked.
	ErrNotTracking = errors.New("no owner tracked")
)
