// Package leaderboard computes ranked participant lists from workout records.
// Everything here is pure: ranks are recomputed on every call and never stored.
package leaderboard

import (
	"fmt"
	"strings"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/scoring"
)

// Eligibility decides who may appear on a leaderboard.
type Eligibility string

// Eligibility rules.
const (
	EligibleRoster Eligibility = "roster" // fixed roster only
	EligibleJoined Eligibility = "joined" // locally joined owners only
	EligibleUnion  Eligibility = "union"  // roster plus joined
	EligibleOpen   Eligibility = "open"   // anyone with a qualifying record
)

// ParseEligibility validates a configured rule. Empty means open.
func ParseEligibility(s string) (Eligibility, error) {
	switch e := Eligibility(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EligibleOpen, nil
	case EligibleRoster, EligibleJoined, EligibleUnion, EligibleOpen:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEligibility, s)
	}
}

// Definition describes one competition or goal.
type Definition struct {
	ID          string
	Name        string
	Score       scoring.Rule
	Activity    model.ActivityKind // empty accepts every activity
	Start       int64              // unix seconds, 0 is open
	End         int64              // unix seconds inclusive, 0 is open
	ContextID   string             // when set, records must be linked to it
	Eligibility Eligibility
	Roster      []string
	Goal        float64 // finisher threshold in score units, 0 disables
}

// Validate checks the definition for configuration mistakes.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDefinition)
	}
	if d.End != 0 && d.Start > d.End {
		return fmt.Errorf("%w: %s starts after it ends", ErrInvalidDefinition, d.ID)
	}
	if d.Goal < 0 {
		return fmt.Errorf("%w: %s has a negative goal", ErrInvalidDefinition, d.ID)
	}
	if _, err := scoring.ParseRule(string(d.Score)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, d.ID, err)
	}
	if _, err := ParseEligibility(string(d.Eligibility)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, d.ID, err)
	}
	if d.Eligibility == EligibleRoster && len(d.Roster) == 0 {
		return fmt.Errorf("%w: %s has an empty roster", ErrInvalidDefinition, d.ID)
	}
	return nil
}

// Qualifies reports whether rec counts toward the leaderboard, ignoring eligibility.
func (d Definition) Qualifies(rec model.WorkoutRecord) bool {
	if d.Activity != "" && rec.Activity != d.Activity {
		return false
	}
	if d.Start != 0 && rec.CreatedAt < d.Start {
		return false
	}
	if d.End != 0 && rec.CreatedAt > d.End {
		return false
	}
	if d.ContextID != "" && !rec.LinkedTo(d.ContextID) {
		return false
	}
	return true
}

// members returns the explicitly eligible owners in order, roster first,
// together with the roster and joined sets used for entry flags.
func (d Definition) members(joined []string) ([]string, map[string]bool, map[string]bool) {
	roster := make(map[string]bool)
	join := make(map[string]bool)
	var order []string
	add := func(owner string, set map[string]bool) {
		if owner == "" {
			return
		}
		if !roster[owner] && !join[owner] {
			order = append(order, owner)
		}
		set[owner] = true
	}

	switch d.Eligibility {
	case EligibleRoster:
		for _, o := range d.Roster {
			add(o, roster)
		}
	case EligibleJoined:
		for _, o := range joined {
			add(o, join)
		}
	case EligibleUnion:
		for _, o := range d.Roster {
			add(o, roster)
		}
		for _, o := range joined {
			add(o, join)
		}
	default:
		for _, o := range d.Roster {
			roster[o] = true
		}
		for _, o := range joined {
			join[o] = true
		}
	}
	return order, roster, join
}

// Restricted reports whether only listed members are eligible.
func (d Definition) Restricted() bool {
	return d.Eligibility != EligibleOpen && d.Eligibility != ""
}

// Authors returns the owners whose records feed this leaderboard, or nil
// when the leaderboard is open.
func (d Definition) Authors(joined []string) []string {
	if !d.Restricted() {
		return nil
	}
	order, _, _ := d.members(joined)
	return order
}
