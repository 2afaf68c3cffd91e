// Package service wires the cache components together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pacer/internal/adapters/charity"
	"github.com/okian/pacer/internal/adapters/kv"
	"github.com/okian/pacer/internal/adapters/mq/worker"
	"github.com/okian/pacer/internal/adapters/profiles"
	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/adapters/repository"
	"github.com/okian/pacer/internal/baseline"
	"github.com/okian/pacer/internal/bus"
	"github.com/okian/pacer/internal/domain/dedupe"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/normalize"
	"github.com/okian/pacer/internal/domain/types"
	"github.com/okian/pacer/internal/fetcher"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

const joinSetPrefix = "joined:"

// Service implements the API dependencies for the workout cache.
type Service struct {
	mu      sync.RWMutex
	trackMu sync.Mutex

	// Core components
	client     relay.Client
	ownClient  *relay.NostrClient
	store      repository.Store
	normalizer *normalize.Normalizer
	bus        *bus.Bus
	fetcher    *fetcher.Coordinator
	reconciler *baseline.Reconciler
	tracker    *baseline.Tracker
	profiles   *profiles.Directory
	lane       *worker.Lane
	joins      kv.Store
	charities  *charity.Registry
	rewards    baseline.RewardSink

	// Configuration
	relays              []string
	defs                []leaderboard.Definition
	authors             []string
	priority            []string
	prioritySize        int
	batchSize           int
	yieldDelay          time.Duration
	roundTimeout        time.Duration
	fastTimeout         time.Duration
	interval            time.Duration
	retentionDays       int
	kind                int
	authoritative       bool
	background          bool
	baselineAuthor      string
	baselineDTag        string
	baselineSource      baseline.Source
	baselineMinInterval time.Duration
	baselineTimeout     time.Duration
	taskQueueSize       int
	taskWorkers         int
	dedupeSize          int
	profileTTL          time.Duration

	// State
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		prioritySize:        fetcher.DefaultPrioritySize,
		batchSize:           fetcher.DefaultBatchSize,
		yieldDelay:          fetcher.DefaultYieldDelay,
		roundTimeout:        fetcher.DefaultRoundTimeout,
		fastTimeout:         fetcher.DefaultFastTimeout,
		interval:            fetcher.DefaultInterval,
		retentionDays:       repository.DefaultRetentionDays,
		kind:                model.WorkoutKind,
		background:          true,
		baselineMinInterval: baseline.DefaultMinInterval,
		baselineTimeout:     baseline.DefaultTimeout,
		taskQueueSize:       256,
		taskWorkers:         2,
		dedupeSize:          10000,
		profileTTL:          profiles.DefaultTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting workout cache service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if s.client == nil {
		if len(s.relays) == 0 {
			cancel()
			return relay.ErrNoRelays
		}
		s.ownClient = relay.NewNostrClient(runCtx, s.relays)
		s.client = s.ownClient
	}
	if s.store == nil {
		s.store = repository.NewTreapStore()
	}
	if s.joins == nil {
		s.joins = kv.NewMemory()
	}
	if s.charities == nil {
		s.charities = charity.NewRegistry()
	}
	if s.rewards == nil {
		s.rewards = logRewards{log: s.logger}
	}

	s.normalizer = normalize.New(
		normalize.WithCharities(s.charities),
		normalize.WithWorkoutKind(s.kind),
	)
	s.bus = bus.New()
	s.lane = worker.NewLane(
		worker.WithLaneCapacity(s.taskQueueSize),
		worker.WithLaneWorkers(s.taskWorkers),
	)
	// Queued tasks still run during Stop, after runCtx is cancelled.
	s.lane.Start(context.WithoutCancel(ctx))

	s.fetcher = fetcher.New(s.client, s.store,
		fetcher.WithNormalizer(s.normalizer),
		fetcher.WithBus(s.bus),
		fetcher.WithBatchSize(s.batchSize),
		fetcher.WithPriority(s.priority, s.prioritySize),
		fetcher.WithRoundTimeout(s.roundTimeout),
		fetcher.WithFastTimeout(s.fastTimeout),
		fetcher.WithYielder(fetcher.TimerYield(s.yieldDelay)),
		fetcher.WithRetentionDays(s.retentionDays),
		fetcher.WithKind(s.kind),
		fetcher.WithInterval(s.interval),
	)

	src := s.baselineSource
	if src == nil && s.baselineAuthor != "" {
		src = baseline.NewNostrSource(s.client, s.baselineAuthor, s.baselineDTag)
	}
	if src != nil {
		s.reconciler = baseline.NewReconciler(src,
			baseline.WithMinInterval(s.baselineMinInterval),
			baseline.WithTimeout(s.baselineTimeout),
		)
		s.tracker = baseline.NewTracker(s.client, s.reconciler, s.defs,
			baseline.WithNormalizer(s.normalizer),
			baseline.WithBus(s.bus),
			baseline.WithRewards(s.lane, s.rewards),
			baseline.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
			baseline.WithKind(s.kind),
		)
	}

	s.profiles = profiles.New(s.client, profiles.WithTTL(s.profileTTL))

	if s.background {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.fetcher.Run(runCtx, func() []string { return s.Authors(runCtx) },
				fetcher.FetchOptions{Authoritative: s.authoritative})
		}()
	}

	s.runCtx = runCtx
	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "workout cache service started",
		logger.Int("leaderboards", len(s.defs)),
		logger.Int("authors", len(s.authors)),
		logger.Bool("baseline", s.reconciler != nil),
		logger.Bool("background", s.background),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping workout cache service...")

	s.cancel()
	if s.tracker != nil {
		s.tracker.Stop()
	}
	s.wg.Wait()

	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.lane.Shutdown(sctx); err != nil {
		s.logger.Warn(ctx, "background lane did not drain", logger.Error(err))
	}

	s.bus.Close()
	if s.ownClient != nil {
		s.ownClient.Close()
	}

	s.started = false
	s.logger.Info(ctx, "workout cache service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) definition(id string) (leaderboard.Definition, error) {
	for _, d := range s.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return leaderboard.Definition{}, fmt.Errorf("%w: %q", ErrUnknownLeaderboard, id)
}

// Leaderboards describes the served leaderboards.
func (s *Service) Leaderboards() []types.Summary {
	out := make([]types.Summary, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, types.Summarize(d))
	}
	return out
}

// Joined returns the owners who joined a leaderboard.
func (s *Service) Joined(ctx context.Context, id string) ([]string, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if _, err := s.definition(id); err != nil {
		return nil, err
	}
	return s.joins.Members(ctx, joinSetPrefix+id)
}

func (s *Service) joined(ctx context.Context, id string) []string {
	members, err := s.joins.Members(ctx, joinSetPrefix+id)
	if err != nil {
		metrics.RecordErrorByComponent("service", "join_store")
		s.logger.Warn(ctx, "reading join list failed", logger.String("leaderboard", id), logger.Error(err))
		return nil
	}
	return members
}

// Authors returns the configured population, every roster and every joined
// owner, without duplicates.
func (s *Service) Authors(ctx context.Context) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(owners []string) {
		for _, o := range owners {
			if o != "" && !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	add(s.authors)
	for _, d := range s.defs {
		add(d.Roster)
		add(s.joined(ctx, d.ID))
	}
	return out
}

// Refresh runs one full fetch of every author now.
func (s *Service) Refresh(ctx context.Context) (fetcher.Result, error) {
	if err := s.running(); err != nil {
		return fetcher.Result{}, err
	}
	return s.fetcher.FetchAll(ctx, s.Authors(ctx), fetcher.FetchOptions{Authoritative: s.authoritative}), nil
}

// Leaderboard ranks the cached records under a leaderboard.
func (s *Service) Leaderboard(ctx context.Context, id string) (types.Board, error) {
	if err := s.running(); err != nil {
		return types.Board{}, err
	}
	def, err := s.definition(id)
	if err != nil {
		return types.Board{}, err
	}
	joined := s.joined(ctx, id)
	recs := s.store.Query(repository.InRange(def.Start, def.End))
	return s.board(ctx, def, recs, joined, types.SourceStore, true), nil
}

func (s *Service) board(ctx context.Context, def leaderboard.Definition, recs []model.WorkoutRecord, joined []string, source string, complete bool) types.Board {
	start := time.Now()
	owners := owners(recs, def, joined)
	known := s.profiles.Cached(owners)
	s.warmProfiles(ctx, owners, known)

	list := leaderboard.Aggregate(recs, def, joined, known)
	metrics.RecordAggregation("participants", float64(time.Since(start).Milliseconds()))
	return types.Board{
		LeaderboardID: def.ID,
		Name:          def.Name,
		Source:        source,
		Complete:      complete,
		Goal:          list.Goal,
		Entries:       list.Entries,
	}
}

func (s *Service) warmProfiles(ctx context.Context, owners []string, known map[string]leaderboard.Profile) {
	var missing []string
	for _, o := range owners {
		if _, ok := known[o]; !ok {
			missing = append(missing, o)
		}
	}
	if len(missing) == 0 {
		return
	}
	err := s.lane.Go(ctx, "profiles", func(ctx context.Context) error {
		s.profiles.Lookup(ctx, missing)
		return nil
	})
	if err != nil {
		s.logger.Debug(ctx, "profile warm-up skipped", logger.Int("owners", len(missing)), logger.Error(err))
	}
}

func owners(recs []model.WorkoutRecord, def leaderboard.Definition, joined []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(o string) {
		if o != "" && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	for _, o := range def.Roster {
		add(o)
	}
	for _, o := range joined {
		add(o)
	}
	for _, r := range recs {
		if def.Qualifies(r) {
			add(r.Owner)
		}
	}
	return out
}

// Teams ranks charity teams of a leaderboard.
func (s *Service) Teams(ctx context.Context, id string) ([]leaderboard.TeamEntry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	def, err := s.definition(id)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, c := range s.charities.List() {
		names[c.ID] = c.Name
	}
	start := time.Now()
	teams := leaderboard.AggregateTeams(s.store.Query(repository.InRange(def.Start, def.End)), def, s.joined(ctx, id), names)
	metrics.RecordAggregation("teams", float64(time.Since(start).Milliseconds()))
	return teams, nil
}

// MergedLeaderboard returns the published snapshot of a leaderboard with the
// live workouts of owner on top. Without a usable baseline it falls back to
// the locally cached leaderboard.
func (s *Service) MergedLeaderboard(ctx context.Context, id, owner string) (types.Board, error) {
	if err := s.running(); err != nil {
		return types.Board{}, err
	}
	def, err := s.definition(id)
	if err != nil {
		return types.Board{}, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return types.Board{}, fmt.Errorf("%w: empty owner", ErrInvalidOwner)
	}
	if s.tracker == nil {
		return s.Leaderboard(ctx, id)
	}

	s.trackMu.Lock()
	if s.tracker.Owner() != owner {
		err = s.tracker.Track(s.runCtx, owner)
	} else {
		err = s.tracker.Refresh(ctx, false)
	}
	s.trackMu.Unlock()

	if err != nil {
		if errors.Is(err, baseline.ErrBaselineUnavailable) {
			s.logger.Warn(ctx, "baseline unavailable, serving local leaderboard",
				logger.String("leaderboard", id), logger.Error(err))
			return s.Leaderboard(ctx, id)
		}
		return types.Board{}, err
	}

	view, ok := s.tracker.View(id)
	if !ok {
		return s.Leaderboard(ctx, id)
	}
	return types.Board{
		LeaderboardID: def.ID,
		Name:          def.Name,
		Source:        types.SourceBaseline,
		Complete:      true,
		Cutoff:        view.Cutoff,
		Goal:          view.Goal,
		Entries:       view.Entries,
	}, nil
}

// FastLeaderboard queries the relays directly under a hard deadline. When
// nothing arrived in time it serves the baseline, then the local cache.
func (s *Service) FastLeaderboard(ctx context.Context, id string) (types.Board, error) {
	if err := s.running(); err != nil {
		return types.Board{}, err
	}
	def, err := s.definition(id)
	if err != nil {
		return types.Board{}, err
	}
	joined := s.joined(ctx, id)
	authors := def.Authors(joined)
	if authors == nil {
		authors = s.Authors(ctx)
	}

	recs, complete := s.fetcher.RefreshForLeaderboard(ctx, authors, def.Start)
	if len(recs) > 0 || complete {
		return s.board(ctx, def, recs, joined, types.SourceFast, complete), nil
	}

	if s.reconciler != nil {
		snap, err := s.reconciler.FetchBaseline(ctx, false)
		if err == nil {
			view := baseline.MergeDelta(snap, def, "", nil)
			return types.Board{
				LeaderboardID: def.ID,
				Name:          def.Name,
				Source:        types.SourceBaseline,
				Cutoff:        view.Cutoff,
				Goal:          view.Goal,
				Entries:       view.Entries,
			}, nil
		}
		s.logger.Debug(ctx, "fast refresh fallback without baseline", logger.Error(err))
	}
	board, err := s.Leaderboard(ctx, id)
	board.Complete = false
	return board, err
}

// Join registers owner with a leaderboard in the background and fetches
// their records once registered. The error only reports whether the
// request was accepted.
func (s *Service) Join(ctx context.Context, id, owner string) error {
	if err := s.running(); err != nil {
		return err
	}
	def, err := s.definition(id)
	if err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" || strings.ContainsAny(owner, " \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}

	return s.lane.Go(ctx, "join", func(ctx context.Context) error {
		added, err := s.joins.Add(ctx, joinSetPrefix+def.ID, owner)
		if err != nil {
			return fmt.Errorf("join %s: %w", def.ID, err)
		}
		if !added {
			return nil
		}
		s.logger.Info(ctx, "owner joined", logger.String("leaderboard", def.ID), logger.String("owner", owner))
		s.bus.Publish(fetcher.TopicStore)
		s.fetcher.FetchOwner(ctx, owner, def.Start)
		return nil
	})
}

// Subscribe registers fn for change notifications.
func (s *Service) Subscribe(fn bus.Handler) (uuid.UUID, func(), error) {
	if err := s.running(); err != nil {
		return uuid.Nil, nil, err
	}
	id, cancel := s.bus.Subscribe(fn)
	return id, cancel, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"leaderboards": len(s.defs),
		"authors":      len(s.authors),
		"batchSize":    s.batchSize,
		"taskWorkers":  s.taskWorkers,
	}

	if s.started {
		records := s.store.Len()
		stats["records"] = records
		stats["storeVersion"] = s.store.Version()
		stats["busVersion"] = s.bus.Version()
		stats["subscribers"] = s.bus.Len()
		stats["pendingTasks"] = s.lane.Pending()
		if s.tracker != nil {
			stats["trackedOwner"] = s.tracker.Owner()
			stats["liveDeltas"] = len(s.tracker.Deltas())
		}
		if s.reconciler != nil {
			if snap := s.reconciler.Current(); snap != nil {
				stats["baselinePublishedAt"] = snap.PublishedAt
				stats["baselineCutoff"] = snap.CutoffTimestamp
			}
		}

		metrics.UpdateStoreRecords(records)
	}

	return stats
}

type logRewards struct {
	log logger.Logger
}

func (r logRewards) GoalReached(ctx context.Context, leaderboardID, owner string, score float64) error {
	r.log.Info(ctx, "reward triggered",
		logger.String("leaderboard", leaderboardID),
		logger.String("owner", owner),
		logger.Float64("score", score),
	)
	return nil
}
