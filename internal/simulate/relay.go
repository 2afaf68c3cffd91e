// Package simulate provides an in-process relay and synthetic workout data
// for offline runs and tests.
package simulate

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/domain/model"
)

// MemoryRelay is a relay.Client serving records from memory.
type MemoryRelay struct {
	mu      sync.Mutex
	records []model.RawRecord
	subs    map[*liveSub]struct{}
	filters []model.Filter
	err     error

	fetchDelay  time.Duration
	recordDelay time.Duration
}

type liveSub struct {
	ctx    context.Context
	filter model.Filter
	out    chan model.RawRecord
	done   chan struct{}
}

// RelayOption configures a MemoryRelay.
type RelayOption func(*MemoryRelay)

// WithFetchDelay delays every FetchOnce answer, honoring cancellation.
func WithFetchDelay(d time.Duration) RelayOption {
	return func(r *MemoryRelay) { r.fetchDelay = d }
}

// WithRecordDelay spaces out stored records delivered by Subscribe.
func WithRecordDelay(d time.Duration) RelayOption {
	return func(r *MemoryRelay) { r.recordDelay = d }
}

// NewMemoryRelay creates a relay holding records.
func NewMemoryRelay(records []model.RawRecord, opts ...RelayOption) *MemoryRelay {
	r := &MemoryRelay{
		records: append([]model.RawRecord(nil), records...),
		subs:    make(map[*liveSub]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FailWith makes every following call fail with err. nil restores service.
func (r *MemoryRelay) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Filters returns every filter received so far.
func (r *MemoryRelay) Filters() []model.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Filter(nil), r.filters...)
}

// Publish stores records and pushes them to matching live subscriptions.
func (r *MemoryRelay) Publish(records ...model.RawRecord) {
	r.mu.Lock()
	r.records = append(r.records, records...)
	subs := make([]*liveSub, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		for _, rec := range records {
			if !Matches(s.filter, rec) {
				continue
			}
			select {
			case s.out <- rec:
			case <-s.done:
			case <-s.ctx.Done():
			}
		}
	}
}

func (r *MemoryRelay) begin(filter model.Filter) ([]model.RawRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.filters = append(r.filters, filter)
	if r.err != nil {
		return nil, r.err
	}
	var out []model.RawRecord
	for _, rec := range r.records {
		if Matches(filter, rec) {
			out = append(out, rec)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		// newest first, like a relay
		slices.SortStableFunc(out, func(a, b model.RawRecord) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
		out = out[:filter.Limit]
	}
	return out, nil
}

// FetchOnce returns matching records after the configured delay.
func (r *MemoryRelay) FetchOnce(ctx context.Context, filter model.Filter) ([]model.RawRecord, error) {
	out, err := r.begin(filter)
	if err != nil {
		return nil, err
	}
	if r.fetchDelay > 0 {
		t := time.NewTimer(r.fetchDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// Subscribe delivers matching stored records, spaced by the record delay,
// closes EOSE and then forwards published records until ctx ends.
func (r *MemoryRelay) Subscribe(ctx context.Context, filter model.Filter) (*relay.Subscription, error) {
	stored, err := r.begin(filter)
	if err != nil {
		return nil, err
	}

	sub, records, eose := relay.NewSubscription(len(stored) + 16)
	live := &liveSub{ctx: ctx, filter: filter, out: make(chan model.RawRecord, 16), done: make(chan struct{})}
	r.mu.Lock()
	r.subs[live] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.subs, live)
			r.mu.Unlock()
			close(live.done)
			close(records)
		}()

		for _, rec := range stored {
			if r.recordDelay > 0 {
				t := time.NewTimer(r.recordDelay)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return
			}
		}
		close(eose)

		for {
			select {
			case rec := <-live.out:
				select {
				case records <- rec:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}

// Matches reports whether rec satisfies filter.
func Matches(f model.Filter, rec model.RawRecord) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, rec.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, rec.Owner) {
		return false
	}
	if f.Since > 0 && rec.CreatedAt < f.Since {
		return false
	}
	if f.Until > 0 && rec.CreatedAt > f.Until {
		return false
	}
	for name, values := range f.Tags {
		tags := model.NewTagSet(rec.Tags)
		found := false
		for _, v := range tags.Values(name) {
			if slices.Contains(values, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
