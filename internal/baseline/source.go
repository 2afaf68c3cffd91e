package baseline

import (
	"context"
	"fmt"

	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/tidwall/gjson"
)

// SnapshotKind is the replaceable record kind snapshots are published under.
const SnapshotKind = 30078

// NostrSource reads the newest snapshot record of one publisher.
type NostrSource struct {
	client relay.Client
	author string
	dTag   string
	kind   int
}

// NewNostrSource creates a source for snapshots signed by author and
// addressed by the d tag.
func NewNostrSource(client relay.Client, author, dTag string) *NostrSource {
	return &NostrSource{client: client, author: author, dTag: dTag, kind: SnapshotKind}
}

// Filter is the query the source sends.
func (s *NostrSource) Filter() model.Filter {
	f := model.Filter{
		Kinds:   []int{s.kind},
		Authors: []string{s.author},
		Limit:   1,
	}
	if s.dTag != "" {
		f.Tags = map[string][]string{"d": {s.dTag}}
	}
	return f
}

// Latest fetches and decodes the newest snapshot.
func (s *NostrSource) Latest(ctx context.Context) (*Snapshot, error) {
	if s.author == "" {
		return nil, fmt.Errorf("%w: no publisher configured", ErrBaselineUnavailable)
	}
	raws, err := s.client.FetchOnce(ctx, s.Filter())
	if len(raws) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: nothing published", ErrBaselineUnavailable)
	}

	newest := raws[0]
	for _, raw := range raws[1:] {
		if raw.CreatedAt > newest.CreatedAt {
			newest = raw
		}
	}
	snap, derr := Decode(newest.Content)
	if derr != nil {
		return nil, derr
	}
	if snap.PublishedAt == 0 {
		snap.PublishedAt = newest.CreatedAt
	}
	return snap, nil
}

// Decode parses snapshot content:
//
//	{"published_at": 1700000000, "cutoff": 1699990000,
//	 "leaderboards": {"<id>": [{"owner": "...", "score": 12.5, ...}]}}
//
// Rows without an owner are skipped.
func Decode(content string) (*Snapshot, error) {
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedSnapshot)
	}
	doc := gjson.Parse(content)
	cutoff := doc.Get("cutoff")
	if !cutoff.Exists() {
		cutoff = doc.Get("cutoff_timestamp")
	}
	if cutoff.Type != gjson.Number || cutoff.Int() < 0 {
		return nil, fmt.Errorf("%w: missing cutoff", ErrMalformedSnapshot)
	}

	snap := &Snapshot{
		PublishedAt:     doc.Get("published_at").Int(),
		CutoffTimestamp: cutoff.Int(),
		PerLeaderboard:  make(map[string][]Participant),
	}
	boards := doc.Get("leaderboards")
	if !boards.IsObject() {
		return nil, fmt.Errorf("%w: missing leaderboards", ErrMalformedSnapshot)
	}
	boards.ForEach(func(id, rows gjson.Result) bool {
		var list []Participant
		rows.ForEach(func(_, row gjson.Result) bool {
			owner := row.Get("owner").String()
			if owner == "" {
				return true
			}
			list = append(list, Participant{
				Owner:        owner,
				DisplayName:  row.Get("display_name").String(),
				Score:        row.Get("score").Float(),
				DistanceKm:   row.Get("distance_km").Float(),
				StepCount:    row.Get("step_count").Int(),
				WorkoutCount: int(row.Get("workout_count").Int()),
			})
			return true
		})
		snap.PerLeaderboard[id.String()] = list
		return true
	})
	return snap, nil
}
