package worker

import (
	"context"
	"sync"
	"time"

	"github.com/okian/pacer/internal/adapters/mq/queue"
)

// Lane is a bounded queue with its own pool. Callers hand it work and move on;
// task errors only reach the log.
type Lane struct {
	queue *queue.InMemoryQueue
	pool  *Pool

	mu      sync.Mutex
	started bool
	stopped bool
}

// LaneOption configures a Lane.
type LaneOption func(*laneConfig)

type laneConfig struct {
	workers  int
	capacity int
	timeout  time.Duration
}

// WithLaneWorkers sets the number of workers.
func WithLaneWorkers(n int) LaneOption {
	return func(c *laneConfig) { c.workers = n }
}

// WithLaneCapacity sets how many tasks may wait.
func WithLaneCapacity(n int) LaneOption {
	return func(c *laneConfig) { c.capacity = n }
}

// WithLaneTaskTimeout bounds each task.
func WithLaneTaskTimeout(d time.Duration) LaneOption {
	return func(c *laneConfig) { c.timeout = d }
}

// NewLane builds an idle lane. Call Start before submitting.
func NewLane(opts ...LaneOption) *Lane {
	cfg := laneConfig{workers: 2, capacity: 256, timeout: defaultTaskTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.capacity))
	return &Lane{
		queue: q,
		pool:  NewPool(cfg.workers, q, WithTaskTimeout(cfg.timeout)),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (l *Lane) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true
	l.pool.Start(ctx)
}

// Go submits fn. It never blocks.
func (l *Lane) Go(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if l.queue.IsClosed() {
		return queue.ErrClosed
	}
	if !l.queue.Enqueue(ctx, queue.NewTask(name, fn)) {
		if l.queue.IsClosed() {
			return queue.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return queue.ErrFull
	}
	return nil
}

// Pending returns the number of queued tasks.
func (l *Lane) Pending() int {
	return l.queue.Len(context.Background())
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (l *Lane) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	started := l.started
	l.mu.Unlock()

	if !started {
		return l.queue.Close()
	}
	return l.pool.Shutdown(ctx)
}
