package baseline_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pacer/internal/baseline"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/scoring"
	"github.com/okian/pacer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

type fakeSource struct {
	mu    sync.Mutex
	snaps []*baseline.Snapshot
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeSource) Latest(ctx context.Context) (*baseline.Snapshot, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.snaps) == 0 {
		return nil, baseline.ErrBaselineUnavailable
	}
	s := f.snaps[0]
	if len(f.snaps) > 1 {
		f.snaps = f.snaps[1:]
	}
	return s, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func snapshot(published, cutoff int64, rows ...baseline.Participant) *baseline.Snapshot {
	return &baseline.Snapshot{
		PublishedAt:     published,
		CutoffTimestamp: cutoff,
		PerLeaderboard:  map[string][]baseline.Participant{"km": rows},
	}
}

func TestFetchBaseline(t *testing.T) {
	ctx := context.Background()

	Convey("Given a reconciler with a 30 second window", t, func() {
		clk := &clock{t: time.Unix(1_700_000_000, 0)}
		src := &fakeSource{snaps: []*baseline.Snapshot{snapshot(100, 90)}}
		r := baseline.NewReconciler(src, baseline.WithClock(clk.now))

		Convey("When fetched twice inside the window", func() {
			first, err1 := r.FetchBaseline(ctx, false)
			clk.advance(10 * time.Second)
			second, err2 := r.FetchBaseline(ctx, false)

			Convey("Then the second call is served from cache", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldEqual, first)
				So(src.calls.Load(), ShouldEqual, 1)
				So(r.Current(), ShouldEqual, first)
			})
		})

		Convey("When forced inside the window", func() {
			_, _ = r.FetchBaseline(ctx, false)
			_, err := r.FetchBaseline(ctx, true)
			So(err, ShouldBeNil)
			So(src.calls.Load(), ShouldEqual, 2)
		})

		Convey("When the window has passed and a newer snapshot exists", func() {
			src.snaps = append(src.snaps, snapshot(200, 190))
			_, _ = r.FetchBaseline(ctx, false)
			clk.advance(31 * time.Second)
			snap, err := r.FetchBaseline(ctx, false)

			Convey("Then it supersedes the cached one", func() {
				So(err, ShouldBeNil)
				So(snap.PublishedAt, ShouldEqual, 200)
				So(r.Current().CutoffTimestamp, ShouldEqual, 190)
			})
		})

		Convey("When the source returns an older snapshot", func() {
			src.snaps = []*baseline.Snapshot{snapshot(300, 290), snapshot(100, 90)}
			_, _ = r.FetchBaseline(ctx, false)
			snap, err := r.FetchBaseline(ctx, true)

			Convey("Then the cached one is kept", func() {
				So(err, ShouldBeNil)
				So(snap.PublishedAt, ShouldEqual, 300)
			})
		})

		Convey("When a later refresh fails", func() {
			_, _ = r.FetchBaseline(ctx, false)
			src.err = errors.New("relay down")
			snap, err := r.FetchBaseline(ctx, true)

			Convey("Then the cached snapshot is still served", func() {
				So(err, ShouldBeNil)
				So(snap.PublishedAt, ShouldEqual, 100)
			})
		})
	})

	Convey("Given a source that never answers in time", t, func() {
		src := &fakeSource{delay: time.Second, snaps: []*baseline.Snapshot{snapshot(1, 1)}}
		r := baseline.NewReconciler(src, baseline.WithTimeout(20*time.Millisecond))

		Convey("Then the fetch is bounded and reports unavailability", func() {
			start := time.Now()
			snap, err := r.FetchBaseline(ctx, false)
			So(time.Since(start), ShouldBeLessThan, 500*time.Millisecond)
			So(snap, ShouldBeNil)
			So(errors.Is(err, baseline.ErrBaselineUnavailable), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("Then a retry inside the window is not attempted", func() {
			_, _ = r.FetchBaseline(ctx, false)
			_, err := r.FetchBaseline(ctx, false)
			So(errors.Is(err, baseline.ErrBaselineUnavailable), ShouldBeTrue)
			So(src.calls.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given no source at all", t, func() {
		r := baseline.NewReconciler(nil)
		_, err := r.FetchBaseline(ctx, true)
		So(errors.Is(err, baseline.ErrBaselineUnavailable), ShouldBeTrue)
	})
}

func workout(id, owner string, at int64, km float64) model.WorkoutRecord {
	return model.WorkoutRecord{ID: id, Owner: owner, Activity: model.ActivityRunning, CreatedAt: at, DistanceKm: model.Float64(km)}
}

func TestMergeDelta(t *testing.T) {
	def := leaderboard.Definition{ID: "km", Score: scoring.RuleDistance}

	Convey("Given a snapshot with three participants", t, func() {
		snap := snapshot(1000, 900,
			baseline.Participant{Owner: "alice", Score: 30},
			baseline.Participant{Owner: "bob", Score: 20},
			baseline.Participant{Owner: "carol", Score: 10},
		)

		Convey("When carol adds 25 km after the cutoff", func() {
			deltas := []model.WorkoutRecord{workout("c1", "carol", 950, 15), workout("c2", "carol", 960, 10)}
			view := baseline.MergeDelta(snap, def, "carol", deltas)

			Convey("Then she is re-sorted on top with dense ranks", func() {
				So(view.Entries[0].Owner, ShouldEqual, "carol")
				So(view.Entries[0].Score, ShouldEqual, 35)
				So(view.Entries[0].WorkoutCount, ShouldEqual, 2)
				for i, e := range view.Entries {
					So(e.Rank, ShouldEqual, i+1)
				}
				So(view.Applied, ShouldEqual, 2)
				So(view.Rejected, ShouldEqual, 0)
			})

			Convey("Then the snapshot itself is untouched", func() {
				So(snap.PerLeaderboard["km"][2].Score, ShouldEqual, 10)
			})

			Convey("Then merging the same list again gives the same view", func() {
				again := baseline.MergeDelta(snap, def, "carol", deltas)
				So(again, ShouldResemble, view)
			})
		})

		Convey("When the owner is not in the snapshot", func() {
			view := baseline.MergeDelta(snap, def, "dave", []model.WorkoutRecord{workout("d1", "dave", 950, 25)})

			Convey("Then an entry is created", func() {
				e, ok := view.Find("dave")
				So(ok, ShouldBeTrue)
				So(e.Score, ShouldEqual, 25)
				So(e.Rank, ShouldEqual, 2)
				So(len(view.Entries), ShouldEqual, 4)
			})
		})

		Convey("When deltas include covered, foreign and repeated records", func() {
			view := baseline.MergeDelta(snap, def, "bob", []model.WorkoutRecord{
				workout("b1", "bob", 800, 100),
				workout("x1", "alice", 950, 100),
				workout("b2", "bob", 950, 5),
				workout("b2", "bob", 950, 5),
			})

			Convey("Then only the valid delta counts", func() {
				e, _ := view.Find("bob")
				So(e.Score, ShouldEqual, 25)
				So(view.Applied, ShouldEqual, 1)
				So(view.Rejected, ShouldEqual, 3)
			})

			Convey("Then every rejection carries its reason", func() {
				So(view.Rejections, ShouldHaveLength, 3)
				So(errors.Is(view.Rejections[0], baseline.ErrDeltaBeforeCutoff), ShouldBeTrue)
				So(errors.Is(view.Rejections[1], baseline.ErrDeltaForeignOwner), ShouldBeTrue)
				So(errors.Is(view.Rejections[2], baseline.ErrDeltaRepeated), ShouldBeTrue)
				So(view.Rejections[0].Error(), ShouldContainSubstring, "b1")
			})
		})

		Convey("When there are no deltas", func() {
			view := baseline.MergeDelta(snap, def, "bob", nil)
			So(len(view.Entries), ShouldEqual, 3)
			So(view.Entries[0].Owner, ShouldEqual, "alice")
		})
	})

	Convey("Given a goal leaderboard", t, func() {
		goalDef := leaderboard.Definition{ID: "km", Score: scoring.RuleDistance, Goal: 20}
		snap := snapshot(1000, 900,
			baseline.Participant{Owner: "alice", Score: 30},
			baseline.Participant{Owner: "bob", Score: 12},
			baseline.Participant{Owner: "carol", Score: 21},
		)

		Convey("When bob crosses the goal", func() {
			view := baseline.MergeDelta(snap, goalDef, "bob", []model.WorkoutRecord{workout("b1", "bob", 950, 8)})

			Convey("Then finishers get their own rank sequence", func() {
				So(view.Goal, ShouldEqual, 20)
				var finishers []string
				for _, e := range view.Entries {
					if e.IsFinisher {
						finishers = append(finishers, e.Owner)
						So(e.FinisherRank, ShouldEqual, len(finishers))
					}
				}
				So(finishers, ShouldResemble, []string{"alice", "carol", "bob"})
			})
		})

		Convey("When finishers are re-marked with a higher goal", func() {
			view := baseline.MergeDelta(snap, goalDef, "bob", nil)
			view = baseline.MarkFinishers(view, 25)
			e, _ := view.Find("carol")
			So(e.IsFinisher, ShouldBeFalse)
			So(e.FinisherRank, ShouldEqual, 0)
		})
	})

	Convey("Given no snapshot", t, func() {
		view := baseline.MergeDelta(nil, def, "erin", []model.WorkoutRecord{workout("e1", "erin", 5, 3)})
		So(len(view.Entries), ShouldEqual, 1)
		So(view.Entries[0].Rank, ShouldEqual, 1)
	})
}
