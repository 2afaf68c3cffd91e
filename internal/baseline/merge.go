package baseline

import (
	"fmt"

	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/scoring"
	"github.com/okian/pacer/pkg/metrics"
)

// MergedView is a snapshot leaderboard with one owner's live workouts on top.
type MergedView struct {
	LeaderboardID string              `json:"leaderboard_id"`
	Owner         string              `json:"owner,omitempty"`
	PublishedAt   int64               `json:"published_at"`
	Cutoff        int64               `json:"cutoff"`
	Goal          float64             `json:"goal,omitempty"`
	Entries       []leaderboard.Entry `json:"entries"`
	Applied       int                 `json:"applied"`
	Rejected      int                 `json:"rejected"`
	// Rejections holds one error per rejected delta, matching
	// ErrDeltaForeignOwner, ErrDeltaBeforeCutoff or ErrDeltaRepeated.
	Rejections []error `json:"-"`
}

func (v *MergedView) reject(kind error, rec model.WorkoutRecord) {
	v.Rejected++
	v.Rejections = append(v.Rejections, fmt.Errorf("%w: %s", kind, rec.ID))
}

// Find returns the entry of owner.
func (v MergedView) Find(owner string) (leaderboard.Entry, bool) {
	for _, e := range v.Entries {
		if e.Owner == owner {
			return e, true
		}
	}
	return leaderboard.Entry{}, false
}

// MergeDelta adds the owner's workouts to the snapshot rows of def and
// re-ranks. deltas must be the owner's complete list since the cutoff; the
// result is the same however often it is recomputed. Deltas from another
// owner, created before the cutoff or repeating an id are rejected.
// Deltas that do not qualify for def are skipped. snap is not modified.
func MergeDelta(snap *Snapshot, def leaderboard.Definition, owner string, deltas []model.WorkoutRecord) MergedView {
	view := MergedView{LeaderboardID: def.ID, Owner: owner, Goal: def.Goal}
	if snap != nil {
		view.PublishedAt = snap.PublishedAt
		view.Cutoff = snap.CutoffTimestamp
	}

	rows := snap.Participants(def.ID)
	entries := make([]leaderboard.Entry, 0, len(rows)+1)
	at := -1
	for _, p := range rows {
		if p.Owner == "" {
			continue
		}
		if p.Owner == owner {
			if at >= 0 {
				continue
			}
			at = len(entries)
		}
		entries = append(entries, p.entry())
	}

	seen := make(map[string]bool, len(deltas))
	var delta leaderboard.Entry
	for _, rec := range deltas {
		switch {
		case owner == "" || rec.Owner != owner:
			view.reject(ErrDeltaForeignOwner, rec)
			continue
		case rec.CreatedAt < view.Cutoff:
			view.reject(ErrDeltaBeforeCutoff, rec)
			continue
		case seen[rec.ID]:
			view.reject(ErrDeltaRepeated, rec)
			continue
		}
		seen[rec.ID] = true
		if !def.Qualifies(rec) {
			continue
		}
		delta.Score += scoring.Score(def.Score, rec)
		delta.DistanceKm += rec.Distance()
		delta.StepCount += rec.Steps()
		delta.WorkoutCount++
		view.Applied++
	}

	if view.Applied > 0 {
		if at < 0 {
			at = len(entries)
			entries = append(entries, leaderboard.Entry{Owner: owner, DisplayName: leaderboard.ShortOwner(owner)})
		}
		e := &entries[at]
		e.Score += delta.Score
		e.DistanceKm += delta.DistanceKm
		e.StepCount += delta.StepCount
		e.WorkoutCount += delta.WorkoutCount
	}
	if view.Rejected > 0 {
		metrics.RecordMergeRejectedDeltas(view.Rejected)
	}

	leaderboard.Rank(entries)
	view.Entries = entries
	if def.Goal > 0 {
		view = MarkFinishers(view, def.Goal)
	}
	return view
}

// MarkFinishers flags entries at or above goal and numbers them with their
// own rank sequence.
func MarkFinishers(view MergedView, goal float64) MergedView {
	view.Goal = goal
	leaderboard.MarkFinishers(view.Entries, goal)
	return view
}
