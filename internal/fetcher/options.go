package fetcher

import (
	"time"

	"github.com/okian/pacer/internal/bus"
	"github.com/okian/pacer/internal/domain/normalize"
	"github.com/okian/pacer/pkg/logger"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNormalizer sets the record normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Coordinator) { c.normalizer = n }
}

// WithBus publishes a notification after every round.
func WithBus(b *bus.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

// WithBatchSize sets the number of authors per round.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithPriority sets the authors fetched first. When authors is empty the
// first size authors of every plan are used instead.
func WithPriority(authors []string, size int) Option {
	return func(c *Coordinator) {
		c.priority = authors
		if size >= 0 {
			c.prioritySize = size
		}
	}
}

// WithRoundTimeout bounds a single round.
func WithRoundTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.roundTimeout = d
		}
	}
}

// WithFastTimeout sets the hard deadline of RefreshForLeaderboard.
func WithFastTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fastTimeout = d
		}
	}
}

// WithYielder replaces the pause between rounds.
func WithYielder(y Yielder) Option {
	return func(c *Coordinator) {
		if y != nil {
			c.yield = y
		}
	}
}

// WithRetentionDays sets the prune horizon applied after every round.
func WithRetentionDays(days int) Option {
	return func(c *Coordinator) {
		if days > 0 {
			c.retentionDays = days
		}
	}
}

// WithKind sets the record kind queried.
func WithKind(kind int) Option {
	return func(c *Coordinator) {
		if kind > 0 {
			c.kind = kind
		}
	}
}

// WithOpenLimit caps the unfiltered query used when no authors are given.
func WithOpenLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.openLimit = n
		}
	}
}

// WithInterval sets the period of Run.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}
