// Package scoring defines how a workout contributes to a leaderboard score.
package scoring

import (
	"fmt"
	"strings"

	"github.com/okian/pacer/internal/domain/model"
)

// Rule selects the quantity summed per participant.
type Rule string

// Supported rules.
const (
	RuleDistance Rule = "distance" // sum of distance in km
	RuleSteps    Rule = "steps"    // sum of step counts
	RuleCount    Rule = "count"    // number of workouts
)

// ParseRule validates a configured rule name. Empty means distance.
func ParseRule(s string) (Rule, error) {
	switch r := Rule(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RuleDistance, nil
	case RuleDistance, RuleSteps, RuleCount:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRule, s)
	}
}

// Score returns what rec adds under rule. Absent fields contribute zero.
func Score(rule Rule, rec model.WorkoutRecord) float64 {
	switch rule {
	case RuleSteps:
		return float64(rec.Steps())
	case RuleCount:
		return 1
	default:
		return rec.Distance()
	}
}

// Total sums Score over recs.
func Total(rule Rule, recs []model.WorkoutRecord) float64 {
	var sum float64
	for _, r := range recs {
		sum += Score(rule, r)
	}
	return sum
}
