// Package profiles looks up display names and avatars of owners. Profiles
// are cosmetic: a failed lookup only means a shortened key is shown.
package profiles

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/pacer/internal/adapters/relay"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
	"github.com/tidwall/gjson"
)

// MetadataKind is the record kind that carries profile metadata.
const MetadataKind = 0

// Default directory settings.
const (
	DefaultTTL     = 30 * time.Minute
	DefaultMaxSize = 10000
	defaultTimeout = 3 * time.Second
)

type cached struct {
	owner   string
	profile leaderboard.Profile
	at      int64 // CreatedAt of the metadata record
	expires time.Time
}

// Directory caches profiles fetched through a relay client.
type Directory struct {
	client  relay.Client
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	maxSize int // <= 0 means unbounded
	log     logger.Logger

	// front of order is the most recently used owner
	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List
}

// Option configures a Directory.
type Option func(*Directory)

// WithTTL sets how long a profile is trusted.
func WithTTL(d time.Duration) Option {
	return func(dir *Directory) {
		if d > 0 {
			dir.ttl = d
		}
	}
}

// WithMaxSize caps the number of cached owners. The least recently used
// owner is evicted first; maxSize <= 0 leaves the cache unbounded.
func WithMaxSize(maxSize int) Option {
	return func(dir *Directory) { dir.maxSize = maxSize }
}

// WithTimeout bounds a lookup.
func WithTimeout(d time.Duration) Option {
	return func(dir *Directory) {
		if d > 0 {
			dir.timeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(dir *Directory) {
		if now != nil {
			dir.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(dir *Directory) { dir.log = l }
}

// New creates a Directory. A nil client makes it cache-only.
func New(client relay.Client, opts ...Option) *Directory {
	d := &Directory{
		client:  client,
		ttl:     DefaultTTL,
		timeout: defaultTimeout,
		now:     time.Now,
		maxSize: DefaultMaxSize,
		cache:   make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("profiles")
	}
	return d
}

// Put stores a profile directly.
func (d *Directory) Put(owner string, p leaderboard.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.put(cached{owner: owner, profile: p, expires: d.now().Add(d.ttl)})
}

// Len returns the number of cached owners.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

func (d *Directory) get(owner string) (cached, bool) {
	e, ok := d.cache[owner]
	if !ok {
		return cached{}, false
	}
	return e.Value.(cached), true
}

// put stores c as the most recently used entry. d.mu must be held.
func (d *Directory) put(c cached) {
	if e, ok := d.cache[c.owner]; ok {
		e.Value = c
		d.order.MoveToFront(e)
		return
	}
	d.cache[c.owner] = d.order.PushFront(c)
	for d.maxSize > 0 && d.order.Len() > d.maxSize {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.cache, oldest.Value.(cached).owner)
	}
}

// Cached returns the profiles already known for owners, expired or not.
func (d *Directory) Cached(owners []string) map[string]leaderboard.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]leaderboard.Profile, len(owners))
	for _, o := range owners {
		if e, ok := d.cache[o]; ok {
			d.order.MoveToFront(e)
			out[o] = e.Value.(cached).profile
		}
	}
	return out
}

// Lookup returns profiles for owners, fetching the missing or expired ones
// in a single query. On failure the cached profiles are returned.
func (d *Directory) Lookup(ctx context.Context, owners []string) map[string]leaderboard.Profile {
	now := d.now()
	d.mu.Lock()
	var missing []string
	for _, o := range owners {
		if c, ok := d.get(o); !ok || now.After(c.expires) {
			missing = append(missing, o)
		}
	}
	d.mu.Unlock()

	if len(missing) > 0 && d.client != nil {
		d.fetch(ctx, missing, now)
	}
	return d.Cached(owners)
}

func (d *Directory) fetch(ctx context.Context, owners []string, now time.Time) {
	fctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raws, err := d.client.FetchOnce(fctx, model.Filter{Kinds: []int{MetadataKind}, Authors: owners})
	if err != nil {
		metrics.RecordErrorByComponent("profiles", "fetch")
		d.log.Debug(ctx, "profile lookup incomplete", logger.Int("owners", len(owners)), logger.Error(err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	expires := now.Add(d.ttl)
	for _, raw := range raws {
		p, ok := Parse(raw.Content)
		if !ok {
			continue
		}
		if c, seen := d.get(raw.Owner); seen && c.at > raw.CreatedAt {
			continue
		}
		d.put(cached{owner: raw.Owner, profile: p, at: raw.CreatedAt, expires: expires})
	}
	if err != nil {
		return
	}
	// owners the relays had nothing new for keep what they had until the next expiry
	for _, o := range owners {
		if c, _ := d.get(o); c.expires.Before(expires) {
			c.owner = o
			c.expires = expires
			d.put(c)
		}
	}
}

// Parse reads name and picture from metadata content. display_name wins
// over name.
func Parse(content string) (leaderboard.Profile, bool) {
	if !gjson.Valid(content) {
		return leaderboard.Profile{}, false
	}
	doc := gjson.Parse(content)
	if !doc.IsObject() {
		return leaderboard.Profile{}, false
	}
	name := strings.TrimSpace(doc.Get("display_name").String())
	if name == "" {
		name = strings.TrimSpace(doc.Get("displayName").String())
	}
	if name == "" {
		name = strings.TrimSpace(doc.Get("name").String())
	}
	return leaderboard.Profile{
		DisplayName: name,
		Avatar:      strings.TrimSpace(doc.Get("picture").String()),
	}, true
}
