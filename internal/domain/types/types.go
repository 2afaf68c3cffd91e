// Package types contains read shapes shared by the service and the HTTP layer.
package types

import (
	"time"

	"github.com/okian/pacer/internal/domain/leaderboard"
)

// Where a Board was computed from.
const (
	SourceStore    = "store"
	SourceBaseline = "baseline"
	SourceFast     = "fast"
)

// Entry is one ranked participant.
type Entry = leaderboard.Entry

// Board is a ranked leaderboard together with where it came from.
type Board struct {
	LeaderboardID string  `json:"leaderboard_id"`
	Name          string  `json:"name,omitempty"`
	Source        string  `json:"source"`
	Complete      bool    `json:"complete"`
	Cutoff        int64   `json:"cutoff,omitempty"`
	Goal          float64 `json:"goal,omitempty"`
	Entries       []Entry `json:"entries"`
}

// Summary describes a served leaderboard.
type Summary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Score       string  `json:"score"`
	Activity    string  `json:"activity,omitempty"`
	Eligibility string  `json:"eligibility"`
	Start       string  `json:"start,omitempty"`
	End         string  `json:"end,omitempty"`
	ContextID   string  `json:"context_id,omitempty"`
	Goal        float64 `json:"goal,omitempty"`
	Roster      int     `json:"roster"`
}

// Summarize builds the summary of def.
func Summarize(def leaderboard.Definition) Summary {
	s := Summary{
		ID:          def.ID,
		Name:        def.Name,
		Score:       string(def.Score),
		Activity:    string(def.Activity),
		Eligibility: string(def.Eligibility),
		ContextID:   def.ContextID,
		Goal:        def.Goal,
		Roster:      len(def.Roster),
	}
	if s.Eligibility == "" {
		s.Eligibility = string(leaderboard.EligibleOpen)
	}
	if def.Start != 0 {
		s.Start = time.Unix(def.Start, 0).UTC().Format(time.RFC3339)
	}
	if def.End != 0 {
		s.End = time.Unix(def.End, 0).UTC().Format(time.RFC3339)
	}
	return s
}
