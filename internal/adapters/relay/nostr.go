package relay

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nbd-wtf/go-nostr"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/logger"
)

const defaultSubscriptionBuffer = 256

// NostrClient is a Client backed by a go-nostr relay pool.
type NostrClient struct {
	pool   *nostr.SimplePool
	relays []string
	buffer int
	closed atomic.Bool
	log    logger.Logger
}

// NostrOption configures a NostrClient.
type NostrOption func(*NostrClient)

// WithNostrLogger sets the logger.
func WithNostrLogger(l logger.Logger) NostrOption {
	return func(c *NostrClient) { c.log = l }
}

// WithSubscriptionBuffer sets the record channel size of subscriptions.
func WithSubscriptionBuffer(n int) NostrOption {
	return func(c *NostrClient) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// NewNostrClient creates a client for relays. The pool lives until ctx is
// done or Close is called.
func NewNostrClient(ctx context.Context, relays []string, opts ...NostrOption) *NostrClient {
	c := &NostrClient{
		pool:   nostr.NewSimplePool(ctx),
		relays: append([]string(nil), relays...),
		buffer: defaultSubscriptionBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("relay")
	}
	return c
}

// Relays returns the configured relay URLs.
func (c *NostrClient) Relays() []string {
	return append([]string(nil), c.relays...)
}

func (c *NostrClient) check() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(c.relays) == 0 {
		return ErrNoRelays
	}
	return nil
}

// FetchOnce collects stored events until every relay sent EOSE or ctx ends.
func (c *NostrClient) FetchOnce(ctx context.Context, filter model.Filter) ([]model.RawRecord, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []model.RawRecord
	for re := range c.pool.FetchMany(ctx, c.Relays(), ToNostrFilter(filter)) {
		if re.Event == nil {
			continue
		}
		if _, dup := seen[re.Event.ID]; dup {
			continue
		}
		seen[re.Event.ID] = struct{}{}
		out = append(out, FromNostrEvent(re.Event))
	}

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("fetch interrupted after %d records: %w", len(out), err)
	}
	return out, nil
}

// Subscribe streams stored events, closes EOSE once every relay finished
// its stored batch, then keeps following live events on the same
// subscription until ctx ends.
func (c *NostrClient) Subscribe(ctx context.Context, filter model.Filter) (*Subscription, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	sub, records, eose := NewSubscription(c.buffer)
	stored := make(chan struct{})
	events := c.pool.SubscribeManyNotifyEOSE(ctx, c.Relays(), ToNostrFilter(filter), stored)

	go func() {
		defer close(records)
		eoseSent := false
		defer func() {
			if !eoseSent {
				close(eose)
			}
		}()

		seen := make(map[string]struct{})
		for {
			select {
			case <-ctx.Done():
				return
			case <-stored:
				close(eose)
				eoseSent = true
				stored = nil
			case re, ok := <-events:
				if !ok {
					c.log.Debug(ctx, "subscription ended", logger.Int("authors", len(filter.Authors)))
					return
				}
				if re.Event == nil {
					continue
				}
				if _, dup := seen[re.Event.ID]; dup {
					continue
				}
				seen[re.Event.ID] = struct{}{}
				select {
				case records <- FromNostrEvent(re.Event):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}

// Close shuts the relay pool down.
func (c *NostrClient) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close("pacer shutting down")
	}
}

// ToNostrFilter converts a model filter to the wire filter.
func ToNostrFilter(f model.Filter) nostr.Filter {
	nf := nostr.Filter{
		Kinds:   f.Kinds,
		Authors: f.Authors,
		Limit:   f.Limit,
	}
	if f.Since > 0 {
		since := nostr.Timestamp(f.Since)
		nf.Since = &since
	}
	if f.Until > 0 {
		until := nostr.Timestamp(f.Until)
		nf.Until = &until
	}
	if len(f.Tags) > 0 {
		nf.Tags = nostr.TagMap{}
		for k, v := range f.Tags {
			nf.Tags[k] = v
		}
	}
	return nf
}

// FromNostrEvent converts a wire event to a raw record.
func FromNostrEvent(ev *nostr.Event) model.RawRecord {
	tags := make([][]string, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		tags = append(tags, []string(t))
	}
	return model.RawRecord{
		ID:        ev.ID,
		Owner:     ev.PubKey,
		Kind:      ev.Kind,
		CreatedAt: int64(ev.CreatedAt),
		Tags:      tags,
		Content:   ev.Content,
	}
}
