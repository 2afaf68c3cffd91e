// Package normalize turns untrusted relay records into WorkoutRecords.
// It is the only place that reads raw tags and content.
package normalize

import (
	"context"
	"fmt"

	"github.com/okian/pacer/internal/adapters/charity"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

// CharityResolver resolves a free-text charity tag.
type CharityResolver interface {
	Resolve(tag string) (charity.Charity, bool)
}

// Normalizer parses raw records. The zero value is not usable; use New.
type Normalizer struct {
	charities CharityResolver
	kind      int
	log       logger.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCharities sets the registry used to trust charity tags.
func WithCharities(r CharityResolver) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.charities = r
		}
	}
}

// WithWorkoutKind sets the accepted relay kind. Zero accepts any kind.
func WithWorkoutKind(kind int) Option {
	return func(n *Normalizer) { n.kind = kind }
}

// WithLogger sets the logger used by NormalizeBatch.
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) { n.log = l }
}

// New creates a Normalizer. Without a registry every charity tag is discarded.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		charities: charity.NewRegistry(),
		kind:      model.WorkoutKind,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses raw into a WorkoutRecord. The returned error wraps ErrParse.
func (n *Normalizer) Normalize(raw model.RawRecord) (model.WorkoutRecord, error) {
	switch {
	case raw.ID == "":
		return model.WorkoutRecord{}, fmt.Errorf("%w: id", ErrMissingField)
	case raw.Owner == "":
		return model.WorkoutRecord{}, fmt.Errorf("%w: owner", ErrMissingField)
	case raw.CreatedAt <= 0:
		return model.WorkoutRecord{}, fmt.Errorf("%w: created_at", ErrMissingField)
	case n.kind != 0 && raw.Kind != n.kind:
		return model.WorkoutRecord{}, fmt.Errorf("%w: %d", ErrWrongKind, raw.Kind)
	}

	tags := model.NewTagSet(raw.Tags)
	activity, ok := detectActivity(tags, raw.Content)
	if !ok {
		return model.WorkoutRecord{}, fmt.Errorf("%w: record %s", ErrNoActivity, raw.ID)
	}

	rec := model.WorkoutRecord{
		ID:        raw.ID,
		Owner:     raw.Owner,
		Activity:  activity,
		CreatedAt: raw.CreatedAt,
	}
	if km, ok := distance(tags); ok {
		rec.DistanceKm = model.Float64(km)
	}
	if v, ok := tags.Get("duration"); ok {
		if secs, ok := parseDuration(v); ok {
			rec.DurationSeconds = model.Int64(secs)
		}
	}
	if _, v, ok := tags.GetAny("steps", "step_count"); ok {
		if steps, ok := parseCount(v); ok {
			rec.StepCount = model.Int64(steps)
		}
	}
	if _, v, ok := tags.GetAny("charity", "team"); ok {
		if c, ok := n.charities.Resolve(v); ok {
			rec.CharityID = c.ID
		}
	}
	rec.LinkedContextIDs = contexts(tags)
	return rec, nil
}

// NormalizeBatch normalizes every record, dropping the ones that fail.
func (n *Normalizer) NormalizeBatch(ctx context.Context, raws []model.RawRecord) []model.WorkoutRecord {
	out := make([]model.WorkoutRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := n.Normalize(raw)
		if err != nil {
			metrics.RecordRecordRejected(reason(err))
			if n.log != nil {
				n.log.Debug(ctx, "dropping raw record", logger.String("id", raw.ID), logger.Error(err))
			}
			continue
		}
		out = append(out, rec)
	}
	return out
}

// distance reads ["distance", value, unit] or the unit-suffixed variants.
func distance(tags model.TagSet) (float64, bool) {
	if t, ok := tags.Tuple("distance"); ok && len(t) >= 2 {
		unit := ""
		if len(t) >= 3 {
			unit = t[2]
		}
		return toKm(t[1], unit)
	}
	if v, ok := tags.Get("distance_km"); ok {
		return toKm(v, "km")
	}
	if v, ok := tags.Get("distance_m"); ok {
		return toKm(v, "m")
	}
	if v, ok := tags.Get("distance_mi"); ok {
		return toKm(v, "mi")
	}
	return 0, false
}

var contextTags = []string{"challenge", "event", "competition"}

func contexts(tags model.TagSet) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, name := range contextTags {
		for _, v := range tags.Values(name) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
