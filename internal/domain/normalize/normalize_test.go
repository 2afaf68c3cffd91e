package normalize_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/okian/pacer/internal/adapters/charity"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/normalize"
	"github.com/okian/pacer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func raw(tags [][]string, content string) model.RawRecord {
	return model.RawRecord{
		ID:        "rec-1",
		Owner:     "alice",
		Kind:      model.WorkoutKind,
		CreatedAt: 1700000000,
		Tags:      tags,
		Content:   content,
	}
}

func TestNormalizeActivity(t *testing.T) {
	n := normalize.New()

	Convey("Given raw records with different activity signals", t, func() {
		Convey("When the exercise tag names a known activity", func() {
			rec, err := n.Normalize(raw([][]string{{"exercise", "Running"}}, ""))

			Convey("Then the kind is taken from the tag", func() {
				So(err, ShouldBeNil)
				So(rec.Activity, ShouldEqual, model.ActivityRunning)
				So(rec.ID, ShouldEqual, "rec-1")
				So(rec.Owner, ShouldEqual, "alice")
				So(rec.CreatedAt, ShouldEqual, 1700000000)
			})
		})

		Convey("When keywords are used instead of canonical names", func() {
			jog, _ := n.Normalize(raw([][]string{{"activity", "morning jog"}}, ""))
			hike, _ := n.Normalize(raw([][]string{{"exercise", "hike"}}, ""))
			ride, _ := n.Normalize(raw([][]string{{"type", "Bike ride"}}, ""))

			Convey("Then they map to canonical kinds", func() {
				So(jog.Activity, ShouldEqual, model.ActivityRunning)
				So(hike.Activity, ShouldEqual, model.ActivityWalking)
				So(ride.Activity, ShouldEqual, model.ActivityCycling)
			})
		})

		Convey("When words only contain a keyword inside them", func() {
			brunch, _ := n.Normalize(raw([][]string{{"activity", "brunch"}}, ""))
			pride, _ := n.Normalize(raw([][]string{{"activity", "pride parade"}}, ""))
			truck, _ := n.Normalize(raw([][]string{{"activity", "truck pull"}}, ""))

			Convey("Then no activity is recognized", func() {
				So(brunch.Activity, ShouldEqual, model.ActivityUnknown)
				So(pride.Activity, ShouldEqual, model.ActivityUnknown)
				So(truck.Activity, ShouldEqual, model.ActivityUnknown)
			})
		})

		Convey("When keywords start a word", func() {
			run, _ := n.Normalize(raw([][]string{{"activity", "trail-run"}}, ""))
			ride, _ := n.Normalize(raw([][]string{{"activity", "#ride"}}, ""))
			ruck, _ := n.Normalize(raw([][]string{{"activity", "Rucking 20kg"}}, ""))

			Convey("Then they still match", func() {
				So(run.Activity, ShouldEqual, model.ActivityRunning)
				So(ride.Activity, ShouldEqual, model.ActivityCycling)
				So(ruck.Activity, ShouldEqual, model.ActivityWalking)
			})
		})

		Convey("When the exercise tag has an unrecognized value", func() {
			rec, err := n.Normalize(raw([][]string{{"exercise", "rowing"}}, ""))

			Convey("Then the record is kept as unknown", func() {
				So(err, ShouldBeNil)
				So(rec.Activity, ShouldEqual, model.ActivityUnknown)
			})
		})

		Convey("When only hashtags or content carry the signal", func() {
			tagged, err1 := n.Normalize(raw([][]string{{"t", "fitness"}, {"t", "walking"}}, ""))
			texted, err2 := n.Normalize(raw(nil, "Went for a quick jog before work"))

			Convey("Then they are used in that order", func() {
				So(err1, ShouldBeNil)
				So(tagged.Activity, ShouldEqual, model.ActivityWalking)
				So(err2, ShouldBeNil)
				So(texted.Activity, ShouldEqual, model.ActivityRunning)
			})
		})

		Convey("When there is no activity signal at all", func() {
			_, err := n.Normalize(raw([][]string{{"distance", "5", "km"}}, "feeling great"))

			Convey("Then the record is rejected with a parse error", func() {
				So(errors.Is(err, normalize.ErrParse), ShouldBeTrue)
				So(errors.Is(err, normalize.ErrNoActivity), ShouldBeTrue)
			})
		})
	})
}

func TestNormalizeRequiredFields(t *testing.T) {
	n := normalize.New()

	Convey("Given raw records missing required fields", t, func() {
		noID := raw([][]string{{"exercise", "run"}}, "")
		noID.ID = ""
		noOwner := raw([][]string{{"exercise", "run"}}, "")
		noOwner.Owner = ""
		noTime := raw([][]string{{"exercise", "run"}}, "")
		noTime.CreatedAt = 0
		wrongKind := raw([][]string{{"exercise", "run"}}, "")
		wrongKind.Kind = 1

		Convey("Then each is rejected", func() {
			for _, r := range []model.RawRecord{noID, noOwner, noTime} {
				_, err := n.Normalize(r)
				So(errors.Is(err, normalize.ErrMissingField), ShouldBeTrue)
			}
			_, err := n.Normalize(wrongKind)
			So(errors.Is(err, normalize.ErrWrongKind), ShouldBeTrue)
			So(errors.Is(err, normalize.ErrParse), ShouldBeTrue)
		})

		Convey("Then a normalizer accepting any kind ignores the kind", func() {
			_, err := normalize.New(normalize.WithWorkoutKind(0)).Normalize(wrongKind)
			So(err, ShouldBeNil)
		})
	})
}

func TestNormalizeDistance(t *testing.T) {
	n := normalize.New()
	dist := func(tags ...[]string) *float64 {
		rec, err := n.Normalize(raw(append([][]string{{"exercise", "run"}}, tags...), ""))
		So(err, ShouldBeNil)
		return rec.DistanceKm
	}

	Convey("Given distance tags in several units", t, func() {
		Convey("Then miles convert to kilometres", func() {
			km := dist([]string{"distance", "5", "mi"})
			So(km, ShouldNotBeNil)
			So(*km, ShouldAlmostEqual, 8.0467, 0.0001)
		})

		Convey("Then metres are divided by a thousand", func() {
			So(*dist([]string{"distance", "2500", "m"}), ShouldAlmostEqual, 2.5, 1e-9)
			So(*dist([]string{"distance_m", "1200"}), ShouldAlmostEqual, 1.2, 1e-9)
		})

		Convey("Then unitless and km values are kilometres", func() {
			So(*dist([]string{"distance", "7.25"}), ShouldEqual, 7.25)
			So(*dist([]string{"distance", "3", "KM"}), ShouldEqual, 3)
			So(*dist([]string{"distance_km", "4"}), ShouldEqual, 4)
		})

		Convey("Then a unit glued to the value is understood", func() {
			So(*dist([]string{"distance", "10mi"}), ShouldAlmostEqual, 16.0934, 1e-9)
		})

		Convey("Then malformed values are absent rather than zero", func() {
			So(dist([]string{"distance", "NaN", "km"}), ShouldBeNil)
			So(dist([]string{"distance", "0", "km"}), ShouldBeNil)
			So(dist([]string{"distance", "-3", "km"}), ShouldBeNil)
			So(dist([]string{"distance", "Inf"}), ShouldBeNil)
			So(dist([]string{"distance", "five", "km"}), ShouldBeNil)
			So(dist([]string{"distance", "5", "furlongs"}), ShouldBeNil)
			So(dist([]string{"distance"}), ShouldBeNil)
			So(dist(), ShouldBeNil)
		})
	})
}

func TestNormalizeDurationStepsCharityContexts(t *testing.T) {
	registry := charity.NewRegistry(charity.Charity{ID: "opensats", Name: "OpenSats"})
	n := normalize.New(normalize.WithCharities(registry))
	parse := func(tags ...[]string) model.WorkoutRecord {
		rec, err := n.Normalize(raw(append([][]string{{"exercise", "walk"}}, tags...), ""))
		So(err, ShouldBeNil)
		return rec
	}

	Convey("Given duration tags", t, func() {
		So(*parse([]string{"duration", "01:02:03"}).DurationSeconds, ShouldEqual, 3723)
		So(*parse([]string{"duration", "45:30"}).DurationSeconds, ShouldEqual, 2730)
		So(*parse([]string{"duration", "1800"}).DurationSeconds, ShouldEqual, 1800)
		So(parse([]string{"duration", "1:75:00"}).DurationSeconds, ShouldBeNil)
		So(parse([]string{"duration", "-5"}).DurationSeconds, ShouldBeNil)
		So(parse([]string{"duration", "soon"}).DurationSeconds, ShouldBeNil)
		So(parse([]string{"duration", "3000000000000000:00:00"}).DurationSeconds, ShouldBeNil)
		So(parse([]string{"duration", "300000000000000000:00"}).DurationSeconds, ShouldBeNil)
		So(parse([]string{"duration", "9223372036854775807"}).DurationSeconds, ShouldBeNil)

		rec := parse([]string{"duration", "2562047:47:16"})
		So(*rec.DurationSeconds, ShouldBeGreaterThan, 0)
		So(rec.Duration(), ShouldBeGreaterThan, 0)
	})

	Convey("Given step tags", t, func() {
		So(*parse([]string{"steps", "12,345"}).StepCount, ShouldEqual, 12345)
		So(*parse([]string{"step_count", "800.0"}).StepCount, ShouldEqual, 800)
		So(parse([]string{"steps", "-1"}).StepCount, ShouldBeNil)
		So(parse([]string{"steps", "lots"}).StepCount, ShouldBeNil)
	})

	Convey("Given charity tags", t, func() {
		So(parse([]string{"charity", "openSATS"}).CharityID, ShouldEqual, "opensats")
		So(parse([]string{"team", "OpenSats"}).CharityID, ShouldEqual, "opensats")
		So(parse([]string{"charity", "totally legit fund"}).CharityID, ShouldBeEmpty)
	})

	Convey("Given context tags", t, func() {
		rec := parse(
			[]string{"challenge", "march-madness"},
			[]string{"event", "city-5k"},
			[]string{"competition", "march-madness"},
		)
		So(rec.LinkedContextIDs, ShouldResemble, []string{"march-madness", "city-5k"})
	})
}

func TestNormalizeBatch(t *testing.T) {
	Convey("Given a batch with malformed records mixed in", t, func() {
		n := normalize.New(normalize.WithLogger(logger.Named("normalize")))
		good := raw([][]string{{"exercise", "running"}, {"distance", "5", "km"}}, "")
		bad := raw(nil, "nothing here")
		bad.ID = "rec-2"
		broken := model.RawRecord{}

		out := n.NormalizeBatch(context.Background(), []model.RawRecord{bad, good, broken})

		Convey("Then only the valid records survive", func() {
			So(len(out), ShouldEqual, 1)
			So(out[0].ID, ShouldEqual, "rec-1")
		})
	})
}
