package normalize

import (
	"errors"
	"fmt"
)

// ErrParse marks a raw record that could not be turned into a workout.
// Callers drop such records; it never crosses the fetch boundary.
var ErrParse = errors.New("normalize: unparseable record")

// Specific rejection reasons. All of them match ErrParse with errors.Is.
var (
	ErrMissingField = fmt.Errorf("%w: missing required field", ErrParse)
	ErrWrongKind    = fmt.Errorf("%w: not a workout kind", ErrParse)
	ErrNoActivity   = fmt.Errorf("%w: no activity signal", ErrParse)
)

// reason maps a rejection to a short metrics label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrWrongKind):
		return "wrong_kind"
	case errors.Is(err, ErrNoActivity):
		return "no_activity"
	default:
		return "other"
	}
}
