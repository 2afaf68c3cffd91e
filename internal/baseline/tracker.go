package baseline

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/bus"
	"github.com/okian/pacer/internal/domain/dedupe"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/normalize"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

// TopicPrefix prefixes the bus topic of a merged leaderboard.
const TopicPrefix = "merged:"

// RewardSink receives the goal-reached signal. Payment is someone else's job.
type RewardSink interface {
	GoalReached(ctx context.Context, leaderboardID, owner string, score float64) error
}

// Runner runs best-effort work off the caller's path.
type Runner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Tracker follows the live workouts of the current owner and keeps a merged
// view per leaderboard.
type Tracker struct {
	client     relay.Client
	reconciler *Reconciler
	normalizer *normalize.Normalizer
	defs       []leaderboard.Definition
	bus        *bus.Bus
	runner     Runner
	sink       RewardSink
	seen       dedupe.Deduper
	kind       int
	log        logger.Logger

	mu        sync.RWMutex
	owner     string
	snap      *Snapshot
	deltas    []model.WorkoutRecord
	views     map[string]MergedView
	signalled map[string]bool // leaderboard and owner pairs already signalled
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithNormalizer sets the record normalizer.
func WithNormalizer(n *normalize.Normalizer) TrackerOption {
	return func(t *Tracker) { t.normalizer = n }
}

// WithBus publishes a notification per rebuilt view.
func WithBus(b *bus.Bus) TrackerOption {
	return func(t *Tracker) { t.bus = b }
}

// WithRewards sends goal-reached signals to sink through runner.
func WithRewards(runner Runner, sink RewardSink) TrackerOption {
	return func(t *Tracker) {
		t.runner = runner
		t.sink = sink
	}
}

// WithDeduper replaces the delivery deduper.
func WithDeduper(d dedupe.Deduper) TrackerOption {
	return func(t *Tracker) { t.seen = d }
}

// WithKind sets the workout record kind subscribed to.
func WithKind(kind int) TrackerOption {
	return func(t *Tracker) { t.kind = kind }
}

// WithTrackerLogger sets the logger.
func WithTrackerLogger(l logger.Logger) TrackerOption {
	return func(t *Tracker) { t.log = l }
}

// NewTracker creates an idle tracker for the given leaderboards.
func NewTracker(client relay.Client, reconciler *Reconciler, defs []leaderboard.Definition, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		client:     client,
		reconciler: reconciler,
		defs:       defs,
		kind:       model.WorkoutKind,
		views:      make(map[string]MergedView),
		signalled:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.normalizer == nil {
		t.normalizer = normalize.New(normalize.WithWorkoutKind(t.kind))
	}
	if t.seen == nil {
		t.seen = dedupe.NewInMemoryDeduper()
	}
	if t.log == nil {
		t.log = logger.Get().Named("tracker")
	}
	return t
}

// Owner returns the tracked owner.
func (t *Tracker) Owner() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owner
}

// Track switches to owner: it loads the baseline, subscribes to the
// owner's records since the cutoff and builds the merged views. The
// subscription lives until Stop, another Track call, or ctx ends.
func (t *Tracker) Track(ctx context.Context, owner string) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner", ErrNotTracking)
	}
	snap, err := t.reconciler.FetchBaseline(ctx, false)
	if err != nil {
		return err
	}

	t.Stop()
	sctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.owner = owner
	t.snap = snap
	t.deltas = nil
	t.cancel = cancel
	t.mu.Unlock()
	t.seen.Reset()
	t.rebuild(ctx)

	if t.client == nil {
		return nil
	}
	sub, err := t.client.Subscribe(sctx, model.Filter{
		Kinds:   []int{t.kind},
		Authors: []string{owner},
		Since:   snap.CutoffTimestamp,
	})
	if err != nil {
		t.log.Warn(ctx, "live delta subscription failed", logger.String("owner", owner), logger.Error(err))
		return nil
	}

	t.wg.Add(1)
	go t.consume(sctx, sub)
	return nil
}

func (t *Tracker) consume(ctx context.Context, sub *relay.Subscription) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Records:
			if !ok {
				return
			}
			if t.seen.SeenAndRecord(ctx, raw.ID) {
				continue
			}
			rec, err := t.normalizer.Normalize(raw)
			if err != nil {
				continue
			}
			t.Apply(ctx, rec)
		}
	}
}

// Apply adds live deltas of the tracked owner and rebuilds the views.
// It returns how many deltas were new.
func (t *Tracker) Apply(ctx context.Context, recs ...model.WorkoutRecord) int {
	t.mu.Lock()
	if t.owner == "" {
		t.mu.Unlock()
		return 0
	}
	added := 0
	for _, rec := range recs {
		if rec.Owner != t.owner {
			continue
		}
		if slices.ContainsFunc(t.deltas, func(d model.WorkoutRecord) bool { return d.ID == rec.ID }) {
			continue
		}
		t.deltas = append(t.deltas, rec)
		added++
	}
	t.mu.Unlock()

	if added == 0 {
		return 0
	}
	for range added {
		metrics.RecordLiveDelta()
	}
	t.rebuild(ctx)
	return added
}

// Refresh re-reads the baseline and rebuilds the views. Deltas now covered
// by a newer cutoff are dropped.
func (t *Tracker) Refresh(ctx context.Context, force bool) error {
	snap, err := t.reconciler.FetchBaseline(ctx, force)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.owner == "" {
		t.mu.Unlock()
		return ErrNotTracking
	}
	if t.snap == snap {
		t.mu.Unlock()
		return nil
	}
	t.snap = snap
	t.deltas = slices.DeleteFunc(t.deltas, func(d model.WorkoutRecord) bool { return d.CreatedAt < snap.CutoffTimestamp })
	t.mu.Unlock()
	t.rebuild(ctx)
	return nil
}

// View returns the merged view of a leaderboard.
func (t *Tracker) View(leaderboardID string) (MergedView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.views[leaderboardID]
	return v, ok
}

// Deltas returns a copy of the live deltas.
func (t *Tracker) Deltas() []model.WorkoutRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.deltas)
}

// Stop ends the live subscription.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

type goal struct {
	leaderboardID string
	score         float64
}

func (t *Tracker) rebuild(ctx context.Context) {
	t.mu.Lock()
	owner, snap := t.owner, t.snap
	deltas := slices.Clone(t.deltas)
	var reached []goal
	for _, def := range t.defs {
		view := MergeDelta(snap, def, owner, deltas)
		t.views[def.ID] = view
		if def.Goal <= 0 {
			continue
		}
		key := def.ID + "\x00" + owner
		if e, ok := view.Find(owner); ok && e.IsFinisher && !t.signalled[key] {
			t.signalled[key] = true
			reached = append(reached, goal{leaderboardID: def.ID, score: e.Score})
		}
	}
	t.mu.Unlock()

	if t.bus != nil {
		for _, def := range t.defs {
			t.bus.Publish(TopicPrefix + def.ID)
		}
	}
	for _, g := range reached {
		t.signal(ctx, owner, g)
	}
}

func (t *Tracker) signal(ctx context.Context, owner string, g goal) {
	metrics.RecordGoalSignal()
	t.log.Info(ctx, "goal reached",
		logger.String("leaderboard", g.leaderboardID),
		logger.String("owner", owner),
		logger.Float64("score", g.score),
	)
	if t.sink == nil {
		return
	}
	send := func(ctx context.Context) error {
		return t.sink.GoalReached(ctx, g.leaderboardID, owner, g.score)
	}
	if t.runner == nil {
		if err := send(ctx); err != nil {
			t.log.Error(ctx, "reward signal failed", logger.Error(err))
		}
		return
	}
	if err := t.runner.Go(context.WithoutCancel(ctx), "goal-reached", send); err != nil {
		t.log.Warn(ctx, "reward signal dropped", logger.String("leaderboard", g.leaderboardID), logger.Error(err))
	}
}
