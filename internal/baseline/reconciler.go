package baseline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

// Default reconciler limits.
const (
	DefaultMinInterval = 30 * time.Second
	DefaultTimeout     = 5 * time.Second
)

// Reconciler owns the current snapshot.
type Reconciler struct {
	source      Source
	minInterval time.Duration
	timeout     time.Duration
	now         func() time.Time
	log         logger.Logger

	fetchMu     sync.Mutex
	mu          sync.RWMutex
	current     *Snapshot
	lastAttempt time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMinInterval sets the rate-limit window between fetch attempts.
func WithMinInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d >= 0 {
			r.minInterval = d
		}
	}
}

// WithTimeout bounds a single network fetch.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// NewReconciler creates a reconciler reading from src.
func NewReconciler(src Source, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:      src,
		minInterval: DefaultMinInterval,
		timeout:     DefaultTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("baseline")
	}
	return r
}

// Current returns the cached snapshot, or nil.
func (r *Reconciler) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// FetchBaseline returns the current snapshot, refreshing it from the source
// at most once per rate-limit window unless force is set. When a refresh
// fails the cached snapshot is still served; with nothing cached the error
// wraps ErrBaselineUnavailable. A fetched snapshot older than the cached one
// is ignored.
func (r *Reconciler) FetchBaseline(ctx context.Context, force bool) (*Snapshot, error) {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	now := r.now()
	r.mu.RLock()
	cached, last := r.current, r.lastAttempt
	r.mu.RUnlock()

	if !force && !last.IsZero() && now.Sub(last) < r.minInterval {
		metrics.RecordBaselineFetch(metrics.OutcomeCached)
		if cached == nil {
			return nil, fmt.Errorf("%w: next attempt in %s", ErrBaselineUnavailable, r.minInterval-now.Sub(last))
		}
		return cached, nil
	}

	r.mu.Lock()
	r.lastAttempt = now
	r.mu.Unlock()

	if r.source == nil {
		return r.fallback(cached, fmt.Errorf("%w: no source configured", ErrBaselineUnavailable))
	}

	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.source.Latest(fctx)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.RecordBaselineFetch(outcome)
		r.log.Warn(ctx, "baseline fetch failed", logger.String("outcome", outcome), logger.Error(err))
		return r.fallback(cached, fmt.Errorf("%w: %w", ErrBaselineUnavailable, err))
	}
	if snap == nil {
		metrics.RecordBaselineFetch(metrics.OutcomeEmpty)
		return r.fallback(cached, ErrBaselineUnavailable)
	}

	metrics.RecordBaselineFetch(metrics.OutcomeOK)
	if cached != nil && snap.PublishedAt < cached.PublishedAt {
		r.log.Debug(ctx, "ignoring older baseline",
			logger.Int64("published_at", snap.PublishedAt),
			logger.Int64("cached_published_at", cached.PublishedAt),
		)
		return cached, nil
	}

	r.mu.Lock()
	r.current = snap
	r.mu.Unlock()
	metrics.UpdateBaselineAge(snap.Age(now))
	r.log.Info(ctx, "baseline refreshed",
		logger.Int64("published_at", snap.PublishedAt),
		logger.Int64("cutoff", snap.CutoffTimestamp),
		logger.Int("leaderboards", len(snap.PerLeaderboard)),
	)
	return snap, nil
}

func (r *Reconciler) fallback(cached *Snapshot, err error) (*Snapshot, error) {
	if cached != nil {
		return cached, nil
	}
	return nil, err
}
