package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithClock sets the time source used by Prune.
func WithClock(now func() time.Time) Option {
	return func(s *TreapStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPrioritySource sets the generator for treap node priorities.
// Tests use it to get a reproducible tree shape.
func WithPrioritySource(next func() uint64) Option {
	return func(s *TreapStore) {
		if next != nil {
			s.prio = next
		}
	}
}
