package leaderboard

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/scoring"
)

// Profile is display data for an owner. It never affects scores.
type Profile struct {
	DisplayName string
	Avatar      string
}

// Entry is one ranked participant.
type Entry struct {
	Owner        string  `json:"owner"`
	DisplayName  string  `json:"display_name"`
	Avatar       string  `json:"avatar,omitempty"`
	Score        float64 `json:"score"`
	DistanceKm   float64 `json:"distance_km"`
	StepCount    int64   `json:"step_count"`
	WorkoutCount int     `json:"workout_count"`
	Rank         int     `json:"rank"`
	IsFinisher   bool    `json:"is_finisher"`
	FinisherRank int     `json:"finisher_rank,omitempty"`
	IsRoster     bool    `json:"is_roster"`
	IsJoined     bool    `json:"is_joined"`
}

// RankedList is an aggregation result.
type RankedList struct {
	LeaderboardID string  `json:"leaderboard_id"`
	Goal          float64 `json:"goal,omitempty"`
	Entries       []Entry `json:"entries"`
}

// Find returns the entry of owner.
func (l RankedList) Find(owner string) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Owner == owner {
			return e, true
		}
	}
	return Entry{}, false
}

// Top returns at most n entries. n <= 0 returns everything.
func (l RankedList) Top(n int) []Entry {
	if n <= 0 || n >= len(l.Entries) {
		return l.Entries
	}
	return l.Entries[:n]
}

// Finishers returns the finishers in finisher-rank order.
func (l RankedList) Finishers() []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.IsFinisher {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int { return cmp.Compare(a.FinisherRank, b.FinisherRank) })
	return out
}

// Aggregate ranks the owners of records under def.
//
// Records are summed per eligible owner in the order given; owners with a
// positive score are sorted by score descending, keeping first-appearance
// order for ties. Owners with a zero score, including listed members with
// no qualifying record, follow ordered by display name. Ranks are 1..N.
func Aggregate(records []model.WorkoutRecord, def Definition, joined []string, profiles map[string]Profile) RankedList {
	order, roster, join := def.members(joined)
	restricted := def.Restricted()
	eligible := make(map[string]bool, len(order))
	for _, o := range order {
		eligible[o] = true
	}

	byOwner := make(map[string]*Entry)
	var seen []*Entry
	entry := func(owner string) *Entry {
		if e, ok := byOwner[owner]; ok {
			return e
		}
		e := &Entry{
			Owner:    owner,
			IsRoster: roster[owner],
			IsJoined: join[owner],
		}
		e.DisplayName, e.Avatar = display(owner, profiles)
		byOwner[owner] = e
		seen = append(seen, e)
		return e
	}

	for _, rec := range records {
		if restricted && !eligible[rec.Owner] {
			continue
		}
		if rec.Owner == "" || !def.Qualifies(rec) {
			continue
		}
		e := entry(rec.Owner)
		e.Score += scoring.Score(def.Score, rec)
		e.DistanceKm += rec.Distance()
		e.StepCount += rec.Steps()
		e.WorkoutCount++
	}
	for _, owner := range order {
		entry(owner)
	}

	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, *e)
	}
	Rank(entries)
	if def.Goal > 0 {
		MarkFinishers(entries, def.Goal)
	}
	return RankedList{LeaderboardID: def.ID, Goal: def.Goal, Entries: entries}
}

// Rank sorts entries in place and assigns positional ranks 1..N.
// Positive scores come first by score descending with ties kept in input
// order; zero scores follow by display name, then owner.
func Rank(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		az, bz := a.Score <= 0, b.Score <= 0
		switch {
		case az && bz:
			if c := cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
				return c
			}
			return cmp.Compare(a.Owner, b.Owner)
		case az:
			return 1
		case bz:
			return -1
		default:
			return cmp.Compare(b.Score, a.Score)
		}
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// MarkFinishers flags entries with Score >= goal and numbers the finishers
// 1..F in their current order. Entries must already be ranked.
func MarkFinishers(entries []Entry, goal float64) {
	next := 1
	for i := range entries {
		entries[i].IsFinisher = goal > 0 && entries[i].Score >= goal
		entries[i].FinisherRank = 0
		if entries[i].IsFinisher {
			entries[i].FinisherRank = next
			next++
		}
	}
}

// GoalReached returns the owners whose score crossed the goal.
func GoalReached(list RankedList) map[string]bool {
	out := make(map[string]bool)
	for _, e := range list.Entries {
		if e.IsFinisher {
			out[e.Owner] = true
		}
	}
	return out
}

func display(owner string, profiles map[string]Profile) (string, string) {
	if p, ok := profiles[owner]; ok && p.DisplayName != "" {
		return p.DisplayName, p.Avatar
	}
	avatar := ""
	if p, ok := profiles[owner]; ok {
		avatar = p.Avatar
	}
	return ShortOwner(owner), avatar
}

// ShortOwner abbreviates a long owner key for display.
func ShortOwner(owner string) string {
	const keep = 8
	if len(owner) <= 2*keep+3 {
		return owner
	}
	return owner[:keep] + "..." + owner[len(owner)-keep:]
}
