// Package bus notifies subscribers that cached state changed.
//
// Every subscriber owns a goroutine and a mailbox holding one slot per
// topic. Publishing overwrites the topic's slot, so producers never block
// and a slow subscriber sees the latest version of every topic instead of
// a backlog.
package bus

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

// Notification says that topic changed. Version grows with every Publish.
type Notification struct {
	Topic   string
	Version uint64
}

// Handler receives notifications on the subscriber's own goroutine.
type Handler func(ctx context.Context, n Notification)

// Bus is a coalescing publish/subscribe channel.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]*subscriber
	version atomic.Uint64
	closed  bool
	wg      sync.WaitGroup
	log     logger.Logger
}

type subscriber struct {
	id      uuid.UUID
	handler Handler
	mu      sync.Mutex
	pending map[string]uint64
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{subs: make(map[uuid.UUID]*subscriber)}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Get().Named("bus")
	}
	return b
}

// Subscribe registers fn and returns its id and a cancel function.
// Cancel is idempotent. Subscribing to a closed bus returns a no-op cancel.
func (b *Bus) Subscribe(fn Handler) (uuid.UUID, func()) {
	s := &subscriber{
		id:      uuid.New(),
		handler: fn,
		pending: make(map[string]uint64),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return s.id, func() {}
	}
	b.subs[s.id] = s
	n := len(b.subs)
	b.wg.Add(1)
	b.mu.Unlock()

	metrics.UpdateBusSubscribers(n)
	go b.run(s)

	return s.id, func() { b.unsubscribe(s.id) }
}

func (b *Bus) unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	s, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	n := len(b.subs)
	b.mu.Unlock()

	if ok {
		s.once.Do(func() { close(s.stop) })
		metrics.UpdateBusSubscribers(n)
	}
}

// Publish records a change of topic and wakes every subscriber.
// It never blocks on subscribers and returns the new version.
func (b *Bus) Publish(topic string) uint64 {
	// versions are assigned under the lock so every mailbox sees them in order
	b.mu.Lock()
	defer b.mu.Unlock()
	n := Notification{Topic: topic, Version: b.version.Add(1)}
	if b.closed {
		return n.Version
	}
	for _, s := range b.subs {
		s.offer(n)
	}
	metrics.RecordBusNotification()
	return n.Version
}

// Version returns the last published version.
func (b *Bus) Version() uint64 {
	return b.version.Load()
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops every subscriber and waits for running handlers to return.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uuid.UUID]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.once.Do(func() { close(s.stop) })
	}
	b.wg.Wait()
	metrics.UpdateBusSubscribers(0)
}

func (s *subscriber) offer(n Notification) {
	s.mu.Lock()
	if s.pending[n.Topic] < n.Version {
		s.pending[n.Topic] = n.Version
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// take empties the mailbox and returns its notifications by version.
func (s *subscriber) take() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := make([]Notification, 0, len(s.pending))
	for topic, v := range s.pending {
		out = append(out, Notification{Topic: topic, Version: v})
	}
	clear(s.pending)
	slices.SortFunc(out, func(a, b Notification) int { return cmp.Compare(a.Version, b.Version) })
	return out
}

func (b *Bus) run(s *subscriber) {
	defer b.wg.Done()

	ctx := context.Background()
	var last uint64
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}
		for _, n := range s.take() {
			select {
			case <-s.stop:
				return
			default:
			}
			if n.Version <= last {
				continue
			}
			last = n.Version
			b.deliver(ctx, s, n)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s *subscriber, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("bus", "handler_panic")
			b.log.Error(ctx, "subscriber panicked", logger.String("subscriber", s.id.String()), logger.Any("panic", r))
		}
	}()
	s.handler(ctx, n)
}
