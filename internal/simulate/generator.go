package simulate

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/pacer/internal/domain/model"
)

// Activity mix of generated workouts.
var generatedActivities = []string{"running", "running", "walking", "cycling", "hike", "jog"}

// Workout builds a raw workout record.
func Workout(owner string, createdAt int64, activity string, km float64) model.RawRecord {
	tags := [][]string{{"exercise", activity}}
	if km > 0 {
		tags = append(tags, []string{"distance", strconv.FormatFloat(km, 'f', 2, 64), "km"})
	}
	return model.RawRecord{
		ID:        uuid.NewString(),
		Owner:     owner,
		Kind:      model.WorkoutKind,
		CreatedAt: createdAt,
		Tags:      tags,
	}
}

// WithTags returns raw with extra tags appended.
func WithTags(raw model.RawRecord, tags ...[]string) model.RawRecord {
	raw.Tags = append(append([][]string(nil), raw.Tags...), tags...)
	return raw
}

// Generator produces a reproducible synthetic population.
type Generator struct {
	rng       *rand.Rand
	charities []string
}

// NewGenerator creates a generator seeded with seed. Charity ids, when
// given, are tagged on a share of the workouts.
func NewGenerator(seed uint64, charities ...string) *Generator {
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // synthetic data
		charities: charities,
	}
}

// Owners returns n owner identifiers.
func (g *Generator) Owners(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("npub-sim-%03d", i)
	}
	return out
}

// Population generates perOwner workouts for every owner, spread over the
// window of days ending at now.
func (g *Generator) Population(owners []string, perOwner int, now int64, days int) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(owners)*perOwner)
	window := int64(days) * 86400
	for _, owner := range owners {
		for i := 0; i < perOwner; i++ {
			at := now - g.rng.Int64N(max(window, 1))
			activity := generatedActivities[g.rng.IntN(len(generatedActivities))]
			km := 1 + g.rng.Float64()*20
			raw := Workout(owner, at, activity, km)
			if g.rng.IntN(2) == 0 {
				raw = WithTags(raw, []string{"steps", strconv.Itoa(1000 + g.rng.IntN(20000))})
			}
			if len(g.charities) > 0 && g.rng.IntN(3) == 0 {
				raw = WithTags(raw, []string{"charity", g.charities[g.rng.IntN(len(g.charities))]})
			}
			out = append(out, raw)
		}
	}
	return out
}
