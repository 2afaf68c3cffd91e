package leaderboard

import (
	"cmp"
	"slices"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/scoring"
)

// TeamEntry is a charity team rollup.
type TeamEntry struct {
	CharityID    string  `json:"charity_id"`
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	DistanceKm   float64 `json:"distance_km"`
	Participants int     `json:"participants"`
	WorkoutCount int     `json:"workout_count"`
	Rank         int     `json:"rank"`
}

// AggregateTeams groups qualifying records of eligible owners by charity.
// Records without a resolved charity are skipped. names maps charity ids to
// display names. Teams are ranked like participants: score descending with
// first-appearance order for ties, zero scores last by name.
func AggregateTeams(records []model.WorkoutRecord, def Definition, joined []string, names map[string]string) []TeamEntry {
	order, _, _ := def.members(joined)
	restricted := def.Restricted()
	eligible := make(map[string]bool, len(order))
	for _, o := range order {
		eligible[o] = true
	}

	type team struct {
		entry   TeamEntry
		members map[string]struct{}
	}
	byID := make(map[string]*team)
	var seen []*team

	for _, rec := range records {
		if rec.CharityID == "" || rec.Owner == "" || !def.Qualifies(rec) {
			continue
		}
		if restricted && !eligible[rec.Owner] {
			continue
		}
		t, ok := byID[rec.CharityID]
		if !ok {
			name := names[rec.CharityID]
			if name == "" {
				name = rec.CharityID
			}
			t = &team{entry: TeamEntry{CharityID: rec.CharityID, Name: name}, members: make(map[string]struct{})}
			byID[rec.CharityID] = t
			seen = append(seen, t)
		}
		t.entry.Score += scoring.Score(def.Score, rec)
		t.entry.DistanceKm += rec.Distance()
		t.entry.WorkoutCount++
		t.members[rec.Owner] = struct{}{}
	}

	out := make([]TeamEntry, 0, len(seen))
	for _, t := range seen {
		t.entry.Participants = len(t.members)
		out = append(out, t.entry)
	}
	slices.SortStableFunc(out, func(a, b TeamEntry) int {
		az, bz := a.Score <= 0, b.Score <= 0
		switch {
		case az && bz:
			return cmp.Compare(a.Name, b.Name)
		case az:
			return 1
		case bz:
			return -1
		default:
			return cmp.Compare(b.Score, a.Score)
		}
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
