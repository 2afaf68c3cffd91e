package bus

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pacer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func TestBusDelivery(t *testing.T) {
	Convey("Given a bus with one subscriber", t, func() {
		b := New()
		defer b.Close()

		var got atomic.Uint64
		id, cancel := b.Subscribe(func(_ context.Context, n Notification) {
			got.Store(n.Version)
		})

		Convey("Then it is counted", func() {
			So(id.String(), ShouldNotBeEmpty)
			So(b.Len(), ShouldEqual, 1)
		})

		Convey("When a change is published", func() {
			v := b.Publish("store")

			Convey("Then the subscriber sees it", func() {
				So(waitFor(func() bool { return got.Load() == v }), ShouldBeTrue)
				So(b.Version(), ShouldEqual, v)
			})
		})

		Convey("When the subscription is cancelled", func() {
			cancel()
			cancel()
			b.Publish("store")

			Convey("Then nothing more is delivered", func() {
				So(b.Len(), ShouldEqual, 0)
				time.Sleep(10 * time.Millisecond)
				So(got.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestBusCoalescing(t *testing.T) {
	Convey("Given a slow subscriber", t, func() {
		b := New()
		defer b.Close()

		release := make(chan struct{})
		var mu sync.Mutex
		var seen []uint64
		b.Subscribe(func(_ context.Context, n Notification) {
			<-release
			mu.Lock()
			seen = append(seen, n.Version)
			mu.Unlock()
		})

		Convey("When many changes are published while it is busy", func() {
			start := time.Now()
			for i := 0; i < 1000; i++ {
				b.Publish("store")
			}
			elapsed := time.Since(start)
			close(release)

			Convey("Then producers are not blocked", func() {
				So(elapsed, ShouldBeLessThan, time.Second)
			})

			Convey("Then versions are increasing and the last one arrives", func() {
				So(waitFor(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(seen) > 0 && seen[len(seen)-1] == 1000
				}), ShouldBeTrue)
				mu.Lock()
				defer mu.Unlock()
				So(len(seen), ShouldBeLessThan, 1000)
				for i := 1; i < len(seen); i++ {
					So(seen[i], ShouldBeGreaterThan, seen[i-1])
				}
			})
		})
	})
}

func TestBusTopics(t *testing.T) {
	Convey("Given a subscriber busy with its first notification", t, func() {
		b := New()
		defer b.Close()

		started := make(chan struct{})
		release := make(chan struct{})
		var mu sync.Mutex
		var topics []string
		b.Subscribe(func(_ context.Context, n Notification) {
			if n.Topic == "warmup" {
				close(started)
				<-release
			}
			mu.Lock()
			topics = append(topics, n.Topic)
			mu.Unlock()
		})

		b.Publish("warmup")
		<-started

		Convey("When two different topics change while it is busy", func() {
			b.Publish("store")
			b.Publish("store")
			b.Publish("merged:km")
			close(release)

			Convey("Then the latest change of each topic is delivered in order", func() {
				So(waitFor(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(topics) == 3
				}), ShouldBeTrue)
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				defer mu.Unlock()
				So(topics, ShouldResemble, []string{"warmup", "store", "merged:km"})
			})
		})
	})
}

func TestBusIsolation(t *testing.T) {
	Convey("Given a panicking subscriber next to a healthy one", t, func() {
		b := New()
		defer b.Close()

		b.Subscribe(func(context.Context, Notification) { panic("boom") })
		var healthy atomic.Int64
		b.Subscribe(func(context.Context, Notification) { healthy.Add(1) })

		b.Publish("a")
		So(waitFor(func() bool { return healthy.Load() == 1 }), ShouldBeTrue)
		b.Publish("b")
		So(waitFor(func() bool { return healthy.Load() == 2 }), ShouldBeTrue)
	})
}

func TestBusClose(t *testing.T) {
	Convey("Given a closed bus", t, func() {
		b := New()
		b.Subscribe(func(context.Context, Notification) {})
		b.Close()
		b.Close()

		Convey("Then it drops subscribers and ignores new ones", func() {
			So(b.Len(), ShouldEqual, 0)
			_, cancel := b.Subscribe(func(context.Context, Notification) {})
			cancel()
			So(b.Len(), ShouldEqual, 0)
			So(func() { b.Publish("x") }, ShouldNotPanic)
		})
	})
}
