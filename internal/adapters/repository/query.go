package repository

import "github.com/okian/pacer/internal/domain/model"

// Predicate selects records in Query.
type Predicate func(model.WorkoutRecord) bool

// ByOwner matches records authored by owner.
func ByOwner(owner string) Predicate {
	return func(r model.WorkoutRecord) bool { return r.Owner == owner }
}

// ByOwners matches records authored by any of owners.
func ByOwners(owners ...string) Predicate {
	set := make(map[string]struct{}, len(owners))
	for _, o := range owners {
		set[o] = struct{}{}
	}
	return func(r model.WorkoutRecord) bool {
		_, ok := set[r.Owner]
		return ok
	}
}

// ByActivity matches records of kind.
func ByActivity(kind model.ActivityKind) Predicate {
	return func(r model.WorkoutRecord) bool { return r.Activity == kind }
}

// InRange matches start <= CreatedAt <= end. A zero bound is open.
func InRange(start, end int64) Predicate {
	return func(r model.WorkoutRecord) bool {
		if start != 0 && r.CreatedAt < start {
			return false
		}
		if end != 0 && r.CreatedAt > end {
			return false
		}
		return true
	}
}

// WithContext matches records linked to contextID.
func WithContext(contextID string) Predicate {
	return func(r model.WorkoutRecord) bool { return r.LinkedTo(contextID) }
}

// Filter applies preds to recs, keeping order.
func Filter(recs []model.WorkoutRecord, preds ...Predicate) []model.WorkoutRecord {
	out := make([]model.WorkoutRecord, 0, len(recs))
next:
	for _, r := range recs {
		for _, p := range preds {
			if !p(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}
