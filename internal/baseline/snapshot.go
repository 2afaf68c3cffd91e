// Package baseline overlays a published leaderboard snapshot with the live
// workouts of a single owner.
package baseline

import (
	"context"
	"time"

	"github.com/okian/pacer/internal/domain/leaderboard"
)

// Participant is one pre-aggregated row of a published snapshot.
type Participant struct {
	Owner        string  `json:"owner"`
	DisplayName  string  `json:"display_name,omitempty"`
	Score        float64 `json:"score"`
	DistanceKm   float64 `json:"distance_km,omitempty"`
	StepCount    int64   `json:"step_count,omitempty"`
	WorkoutCount int     `json:"workout_count,omitempty"`
}

// Snapshot is a published aggregate. Every record created before
// CutoffTimestamp is already counted in it.
type Snapshot struct {
	PublishedAt     int64                    `json:"published_at"`
	CutoffTimestamp int64                    `json:"cutoff"`
	PerLeaderboard  map[string][]Participant `json:"leaderboards"`
}

// Participants returns the rows published for a leaderboard.
func (s *Snapshot) Participants(leaderboardID string) []Participant {
	if s == nil {
		return nil
	}
	return s.PerLeaderboard[leaderboardID]
}

// Age is how long ago the snapshot was published.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.PublishedAt == 0 {
		return 0
	}
	return now.Sub(time.Unix(s.PublishedAt, 0))
}

func (p Participant) entry() leaderboard.Entry {
	name := p.DisplayName
	if name == "" {
		name = leaderboard.ShortOwner(p.Owner)
	}
	return leaderboard.Entry{
		Owner:        p.Owner,
		DisplayName:  name,
		Score:        p.Score,
		DistanceKm:   p.DistanceKm,
		StepCount:    p.StepCount,
		WorkoutCount: p.WorkoutCount,
	}
}

// Source fetches the latest published snapshot. It returns an error
// wrapping ErrBaselineUnavailable when nothing has been published.
type Source interface {
	Latest(ctx context.Context) (*Snapshot, error)
}
