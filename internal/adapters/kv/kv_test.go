package kv

import (
	"context"
	"errors"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)

func exerciseStore(ctx context.Context, s Store) {
	added, err := s.Add(ctx, "lb", "bob")
	So(err, ShouldBeNil)
	So(added, ShouldBeTrue)

	added, err = s.Add(ctx, "lb", "bob")
	So(err, ShouldBeNil)
	So(added, ShouldBeFalse)

	_, _ = s.Add(ctx, "lb", "alice")
	members, err := s.Members(ctx, "lb")
	So(err, ShouldBeNil)
	So(members, ShouldResemble, []string{"alice", "bob"})

	ok, _ := s.Contains(ctx, "lb", "alice")
	So(ok, ShouldBeTrue)
	So(s.Remove(ctx, "lb", "alice"), ShouldBeNil)
	ok, _ = s.Contains(ctx, "lb", "alice")
	So(ok, ShouldBeFalse)

	other, _ := s.Members(ctx, "other")
	So(other, ShouldBeEmpty)

	_, err = s.Add(ctx, "", "x")
	So(errors.Is(err, ErrEmptyKey), ShouldBeTrue)
}

func TestMemory(t *testing.T) {
	Convey("Given a memory store", t, func() {
		s := NewMemory()
		defer s.Close()

		Convey("Then it behaves as a set store", func() {
			exerciseStore(context.Background(), s)
		})
	})
}

func TestRedis(t *testing.T) {
	url := os.Getenv("PACER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PACER_TEST_REDIS_URL not set")
	}

	Convey("Given a redis store", t, func() {
		ctx := context.Background()
		s, err := DialRedis(ctx, url, WithPrefix("pacer-test:"))
		So(err, ShouldBeNil)
		defer s.Close()
		_ = s.Remove(ctx, "lb", "bob")
		_ = s.Remove(ctx, "lb", "alice")

		Convey("Then it behaves as a set store", func() {
			exerciseStore(ctx, s)
		})
	})
}

func TestDialRedis(t *testing.T) {
	Convey("Given an invalid url", t, func() {
		_, err := DialRedis(context.Background(), "://nope")
		So(err, ShouldNotBeNil)
	})

	Convey("Given a server that is not listening", t, func() {
		_, err := DialRedis(context.Background(), "redis://127.0.0.1:1/0")
		So(err, ShouldNotBeNil)
	})
}
