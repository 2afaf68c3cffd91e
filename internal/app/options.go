package service

import (
	"time"

	"github.com/okian/pacer/internal/adapters/charity"
	"github.com/okian/pacer/internal/adapters/kv"
	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/adapters/repository"
	"github.com/okian/pacer/internal/baseline"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRelays sets the relay urls used when no client is injected.
func WithRelays(urls ...string) Option {
	return func(s *Service) { s.relays = urls }
}

// WithClient injects the relay client.
func WithClient(c relay.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithStore injects the Event Store.
func WithStore(st repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithJoinStore injects where joined owners are kept.
func WithJoinStore(st kv.Store) Option {
	return func(s *Service) { s.joins = st }
}

// WithCharities sets the known charities.
func WithCharities(list ...charity.Charity) Option {
	return func(s *Service) { s.charities = charity.NewRegistry(list...) }
}

// WithLeaderboards sets the served leaderboards.
func WithLeaderboards(defs ...leaderboard.Definition) Option {
	return func(s *Service) { s.defs = defs }
}

// WithAuthors sets the population scanned in the background.
func WithAuthors(authors ...string) Option {
	return func(s *Service) { s.authors = authors }
}

// WithPriority sets the first-round authors, or the first-round size when
// authors is empty.
func WithPriority(authors []string, size int) Option {
	return func(s *Service) {
		s.priority = authors
		if size >= 0 {
			s.prioritySize = size
		}
	}
}

// WithBatchSize sets the authors per fetch round.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFetchTimings sets the pause between rounds, the round timeout, the
// fast refresh deadline and the background scan interval. Zero keeps the default.
func WithFetchTimings(yield, round, fast, interval time.Duration) Option {
	return func(s *Service) {
		if yield > 0 {
			s.yieldDelay = yield
		}
		if round > 0 {
			s.roundTimeout = round
		}
		if fast > 0 {
			s.fastTimeout = fast
		}
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithRetentionDays sets how long records are kept.
func WithRetentionDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithWorkoutKind sets the record kind of workouts.
func WithWorkoutKind(kind int) Option {
	return func(s *Service) {
		if kind > 0 {
			s.kind = kind
		}
	}
}

// WithAuthoritativeFetch makes successful scans replace the store.
func WithAuthoritativeFetch(enabled bool) Option {
	return func(s *Service) { s.authoritative = enabled }
}

// WithBackgroundFetch turns the periodic scan on or off.
func WithBackgroundFetch(enabled bool) Option {
	return func(s *Service) { s.background = enabled }
}

// WithBaselineAuthor reads snapshots published by author under dTag.
func WithBaselineAuthor(author, dTag string) Option {
	return func(s *Service) {
		s.baselineAuthor = author
		s.baselineDTag = dTag
	}
}

// WithBaselineSource injects the snapshot source.
func WithBaselineSource(src baseline.Source) Option {
	return func(s *Service) { s.baselineSource = src }
}

// WithBaselineLimits sets the fetch rate-limit window and timeout.
func WithBaselineLimits(minInterval, timeout time.Duration) Option {
	return func(s *Service) {
		if minInterval >= 0 {
			s.baselineMinInterval = minInterval
		}
		if timeout > 0 {
			s.baselineTimeout = timeout
		}
	}
}

// WithRewardSink receives goal-reached signals.
func WithRewardSink(sink baseline.RewardSink) Option {
	return func(s *Service) { s.rewards = sink }
}

// WithTaskLane sizes the background lane.
func WithTaskLane(queueSize, workers int) Option {
	return func(s *Service) {
		if queueSize > 0 {
			s.taskQueueSize = queueSize
		}
		if workers > 0 {
			s.taskWorkers = workers
		}
	}
}

// WithDedupeSize sets the size of the live delivery deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithProfileTTL sets how long profiles are cached.
func WithProfileTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.profileTTL = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
