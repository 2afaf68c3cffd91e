package model

import "strings"

// WorkoutKind is the relay event kind carrying workout records.
const WorkoutKind = 1301

// RawRecord is an untrusted record as delivered by a relay. Only the
// normalizer looks inside Tags and Content.
type RawRecord struct {
	ID        string
	Owner     string
	Kind      int
	CreatedAt int64
	Tags      [][]string
	Content   string
}

// TagSet gives typed access to a loosely-typed tag list. The first element
// of every tag is its name; names are matched case-insensitively.
type TagSet struct {
	tags [][]string
}

// NewTagSet wraps tags. Empty tags are ignored.
func NewTagSet(tags [][]string) TagSet {
	clean := make([][]string, 0, len(tags))
	for _, t := range tags {
		if len(t) > 0 && t[0] != "" {
			clean = append(clean, t)
		}
	}
	return TagSet{tags: clean}
}

// Get returns the first value of the first tag called name.
func (s TagSet) Get(name string) (string, bool) {
	t, ok := s.Tuple(name)
	if !ok || len(t) < 2 {
		return "", false
	}
	return strings.TrimSpace(t[1]), true
}

// GetAny returns the first value found among names, in order.
func (s TagSet) GetAny(names ...string) (string, string, bool) {
	for _, n := range names {
		if v, ok := s.Get(n); ok && v != "" {
			return n, v, true
		}
	}
	return "", "", false
}

// Tuple returns the whole first tag called name, name included.
func (s TagSet) Tuple(name string) ([]string, bool) {
	for _, t := range s.tags {
		if strings.EqualFold(t[0], name) {
			return t, true
		}
	}
	return nil, false
}

// Values returns the first value of every tag called name.
func (s TagSet) Values(name string) []string {
	var out []string
	for _, t := range s.tags {
		if len(t) > 1 && strings.EqualFold(t[0], name) {
			if v := strings.TrimSpace(t[1]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Len returns the number of usable tags.
func (s TagSet) Len() int { return len(s.tags) }

// Filter selects records from a relay. Zero values mean "no constraint".
type Filter struct {
	Kinds   []int
	Authors []string
	Since   int64
	Until   int64
	Limit   int
	Tags    map[string][]string
}
