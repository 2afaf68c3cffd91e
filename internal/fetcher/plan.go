// Package fetcher pulls workout records from relays in small sequential
// rounds and feeds them into the Event Store.
package fetcher

// Default round sizing.
const (
	DefaultBatchSize    = 5
	DefaultPrioritySize = 3
)

// Round is one network query.
type Round struct {
	Index    int
	Priority bool
	Authors  []string
}

// Plan splits authors into a priority round followed by fixed-size batches.
//
// The priority round holds the explicitly prioritised authors that appear
// in authors, or the first prioritySize authors when none do. Duplicates
// and empty keys are dropped; the input order is kept.
func Plan(authors, priority []string, prioritySize, batchSize int) []Round {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	seen := make(map[string]bool, len(authors))
	list := make([]string, 0, len(authors))
	for _, a := range authors {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		list = append(list, a)
	}
	if len(list) == 0 {
		return nil
	}

	var first, rest []string
	want := make(map[string]bool, len(priority))
	for _, p := range priority {
		if seen[p] {
			want[p] = true
		}
	}
	if len(want) > 0 {
		for _, a := range list {
			if want[a] {
				first = append(first, a)
			} else {
				rest = append(rest, a)
			}
		}
	} else {
		n := min(max(prioritySize, 0), len(list))
		first, rest = list[:n], list[n:]
	}

	var rounds []Round
	if len(first) > 0 {
		rounds = append(rounds, Round{Priority: true, Authors: first})
	}
	for start := 0; start < len(rest); start += batchSize {
		end := min(start+batchSize, len(rest))
		rounds = append(rounds, Round{Authors: rest[start:end]})
	}
	for i := range rounds {
		rounds[i].Index = i
	}
	return rounds
}
