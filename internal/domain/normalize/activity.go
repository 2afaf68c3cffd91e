package normalize

import (
	"strings"
	"unicode"

	"github.com/okian/pacer/internal/domain/model"
)

type keyword struct {
	word string
	kind model.ActivityKind
}

// keywords are matched, in order, against the start of each lower-cased
// word, so "running" hits "run" but "brunch" does not.
var keywords = []keyword{
	{"cycl", model.ActivityCycling},
	{"bike", model.ActivityCycling},
	{"ebike", model.ActivityCycling},
	{"biking", model.ActivityCycling},
	{"bicycle", model.ActivityCycling},
	{"ride", model.ActivityCycling},
	{"riding", model.ActivityCycling},
	{"run", model.ActivityRunning},
	{"jog", model.ActivityRunning},
	{"sprint", model.ActivityRunning},
	{"marathon", model.ActivityRunning},
	{"walk", model.ActivityWalking},
	{"hike", model.ActivityWalking},
	{"hiking", model.ActivityWalking},
	{"trek", model.ActivityWalking},
	{"stroll", model.ActivityWalking},
	{"ruck", model.ActivityWalking},
}

// activityTags carry an explicit activity value.
var activityTags = []string{"exercise", "activity", "type"}

func matchKeyword(text string) (model.ActivityKind, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, k := range keywords {
		for _, w := range words {
			if strings.HasPrefix(w, k.word) {
				return k.kind, true
			}
		}
	}
	return model.ActivityUnknown, false
}

// detectActivity looks for an activity signal in explicit tags, then in
// hashtags, then in free-text content. An explicit tag whose value is not
// recognized still counts as a signal and yields unknown.
func detectActivity(tags model.TagSet, content string) (model.ActivityKind, bool) {
	if _, v, ok := tags.GetAny(activityTags...); ok {
		kind, _ := matchKeyword(v)
		return kind, true
	}
	for _, h := range tags.Values("t") {
		if kind, ok := matchKeyword(h); ok {
			return kind, true
		}
	}
	if kind, ok := matchKeyword(content); ok {
		return kind, true
	}
	return model.ActivityUnknown, false
}
