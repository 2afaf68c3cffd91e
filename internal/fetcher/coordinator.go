package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/adapters/repository"
	"github.com/okian/pacer/internal/bus"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/normalize"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

// TopicStore is published after every change of the Event Store.
const TopicStore = "store"

// Default coordinator timings.
const (
	DefaultRoundTimeout = 8 * time.Second
	DefaultFastTimeout  = 2500 * time.Millisecond
	DefaultYieldDelay   = 50 * time.Millisecond
	DefaultInterval     = 5 * time.Minute
	defaultOpenLimit    = 500
)

// FetchOptions tunes a single FetchAll.
type FetchOptions struct {
	// Since limits records to CreatedAt >= Since. 0 uses the retention horizon.
	Since int64
	// Authoritative replaces the store contents with what was fetched,
	// but only when every round succeeded.
	Authoritative bool
}

// Result summarises a FetchAll.
type Result struct {
	Rounds   int
	Failed   int
	Fetched  int
	Accepted int
	Inserted int
	Pruned   int
	Replaced bool
}

// Coordinator runs fetch rounds against a relay client.
type Coordinator struct {
	client        relay.Client
	store         repository.Store
	normalizer    *normalize.Normalizer
	bus           *bus.Bus
	batchSize     int
	priority      []string
	prioritySize  int
	roundTimeout  time.Duration
	fastTimeout   time.Duration
	yield         Yielder
	retentionDays int
	kind          int
	openLimit     int
	interval      time.Duration
	now           func() time.Time
	log           logger.Logger

	// one FetchAll at a time keeps rounds strictly sequenced
	mu sync.Mutex
}

// New creates a coordinator writing into store.
func New(client relay.Client, store repository.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:        client,
		store:         store,
		batchSize:     DefaultBatchSize,
		prioritySize:  DefaultPrioritySize,
		roundTimeout:  DefaultRoundTimeout,
		fastTimeout:   DefaultFastTimeout,
		yield:         TimerYield(DefaultYieldDelay),
		retentionDays: repository.DefaultRetentionDays,
		kind:          model.WorkoutKind,
		openLimit:     defaultOpenLimit,
		interval:      DefaultInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.normalizer == nil {
		c.normalizer = normalize.New(normalize.WithWorkoutKind(c.kind))
	}
	if c.log == nil {
		c.log = logger.Get().Named("fetcher")
	}
	return c
}

func (c *Coordinator) horizon() int64 {
	return c.now().Add(-time.Duration(c.retentionDays) * 24 * time.Hour).Unix()
}

func (c *Coordinator) filter(authors []string, since int64) model.Filter {
	f := model.Filter{Kinds: []int{c.kind}, Authors: authors, Since: since}
	if len(authors) == 0 {
		f.Limit = c.openLimit
	}
	return f
}

// FetchAll queries authors round by round. After each round the records are
// normalized, inserted, the store is pruned and TopicStore is published
// before the next round starts. A failed round counts as empty. With no
// authors a single open round is made.
func (c *Coordinator) FetchAll(ctx context.Context, authors []string, opts FetchOptions) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	since := opts.Since
	if since == 0 {
		since = c.horizon()
	}
	rounds := Plan(authors, c.priority, c.prioritySize, c.batchSize)
	if len(rounds) == 0 {
		rounds = []Round{{Priority: true}}
	}

	var res Result
	var collected []model.WorkoutRecord
	start := time.Now()
	for i, round := range rounds {
		if i > 0 {
			if err := c.yield(ctx); err != nil {
				c.log.Info(ctx, "fetch interrupted", logger.Int("round", round.Index), logger.Error(err))
				break
			}
		}

		recs, fetched, err := c.fetchRound(ctx, round, since)
		res.Rounds++
		res.Fetched += fetched
		if err != nil {
			res.Failed++
		}
		res.Accepted += len(recs)
		if opts.Authoritative {
			collected = append(collected, recs...)
		}

		res.Inserted += c.store.InsertMany(recs)
		res.Pruned += c.store.Prune(c.retentionDays)
		c.publish()
	}

	if opts.Authoritative && res.Failed == 0 && res.Rounds == len(rounds) && ctx.Err() == nil {
		c.store.ReplaceAll(collected)
		res.Pruned += c.store.Prune(c.retentionDays)
		res.Replaced = true
		c.publish()
	}

	c.log.Info(ctx, "fetch complete",
		logger.Int("rounds", res.Rounds),
		logger.Int("failed", res.Failed),
		logger.Int("inserted", res.Inserted),
		logger.Int("pruned", res.Pruned),
		logger.Bool("replaced", res.Replaced),
		logger.Duration("took", time.Since(start)),
	)
	return res
}

// FetchOwner runs one round for a single owner and stores the result. It
// does not wait for a FetchAll in progress, so a newly joined owner is
// visible without sitting behind a full scan.
func (c *Coordinator) FetchOwner(ctx context.Context, owner string, since int64) Result {
	if since == 0 {
		since = c.horizon()
	}
	recs, fetched, err := c.fetchRound(ctx, Round{Authors: []string{owner}}, since)
	res := Result{Rounds: 1, Fetched: fetched, Accepted: len(recs)}
	if err != nil {
		res.Failed = 1
	}
	res.Inserted = c.store.InsertMany(recs)
	res.Pruned = c.store.Prune(c.retentionDays)
	c.publish()
	return res
}

func (c *Coordinator) fetchRound(ctx context.Context, round Round, since int64) ([]model.WorkoutRecord, int, error) {
	rctx, cancel := context.WithTimeout(ctx, c.roundTimeout)
	defer cancel()

	start := time.Now()
	raws, err := c.client.FetchOnce(rctx, c.filter(round.Authors, since))
	label := "batch"
	if round.Priority {
		label = "priority"
	}

	outcome := metrics.OutcomeOK
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeFailed
	case len(raws) == 0:
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordFetchRound(label, outcome, float64(time.Since(start).Milliseconds()))

	if err != nil {
		err = fmt.Errorf("%w: round %d: %w", ErrNetwork, round.Index, err)
		c.log.Warn(ctx, "fetch round failed",
			logger.Int("round", round.Index),
			logger.Int("authors", len(round.Authors)),
			logger.Int("partial", len(raws)),
			logger.String("outcome", outcome),
			logger.Error(err),
		)
	}
	return c.normalizer.NormalizeBatch(ctx, raws), len(raws), err
}

func (c *Coordinator) publish() {
	if c.bus != nil {
		c.bus.Publish(TopicStore)
	}
}

// RefreshForLeaderboard makes one combined query for authors and races it
// against the fast timeout. Records that arrived before the deadline are
// returned; complete reports whether the relays finished sending stored
// records in time. The store is not touched.
func (c *Coordinator) RefreshForLeaderboard(ctx context.Context, authors []string, since int64) ([]model.WorkoutRecord, bool) {
	fctx, cancel := context.WithTimeout(ctx, c.fastTimeout)
	defer cancel()

	if since == 0 {
		since = c.horizon()
	}
	sub, err := c.client.Subscribe(fctx, c.filter(authors, since))
	if err != nil {
		metrics.RecordFastRefresh(metrics.OutcomeFailed, 0)
		c.log.Warn(ctx, "fast refresh failed", logger.Error(fmt.Errorf("%w: %w", ErrNetwork, err)))
		return nil, false
	}

	seen := make(map[string]bool)
	var raws []model.RawRecord
	keep := func(raw model.RawRecord) {
		if !seen[raw.ID] {
			seen[raw.ID] = true
			raws = append(raws, raw)
		}
	}
	drain := func() {
		for {
			select {
			case raw, ok := <-sub.Records:
				if !ok {
					return
				}
				keep(raw)
			default:
				return
			}
		}
	}

	complete := false
loop:
	for {
		select {
		case raw, ok := <-sub.Records:
			if !ok {
				break loop
			}
			keep(raw)
		case <-sub.EOSE:
			complete = true
			drain()
			break loop
		case <-fctx.Done():
			drain()
			break loop
		}
	}

	recs := c.normalizer.NormalizeBatch(ctx, raws)
	outcome := metrics.OutcomeOK
	if !complete {
		outcome = metrics.OutcomeTimeout
	}
	metrics.RecordFastRefresh(outcome, len(recs))
	c.log.Debug(ctx, "fast refresh",
		logger.Int("authors", len(authors)),
		logger.Int("records", len(recs)),
		logger.Bool("complete", complete),
	)
	return recs, complete
}

// Run calls FetchAll with the authors returned by authors, then again every
// interval, until ctx ends.
func (c *Coordinator) Run(ctx context.Context, authors func() []string, opts FetchOptions) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.FetchAll(ctx, authors(), opts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
