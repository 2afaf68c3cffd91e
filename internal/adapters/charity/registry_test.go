package charity

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("Given a registry with two charities", t, func() {
		r := NewRegistry(
			Charity{ID: "opensats", Name: "Open Sats", Aliases: []string{"OS"}},
			Charity{ID: "hrf", Name: "Human Rights Foundation", PayoutAddress: "hrf@example.com"},
			Charity{Name: "no id"},
		)

		Convey("Then tags resolve by id, name or alias ignoring case and spacing", func() {
			for _, tag := range []string{"opensats", "OPEN  sats", "open-sats", " os "} {
				c, ok := r.Resolve(tag)
				So(ok, ShouldBeTrue)
				So(c.ID, ShouldEqual, "opensats")
			}
		})

		Convey("Then unknown free text is rejected", func() {
			_, ok := r.Resolve("my friend's charity")
			So(ok, ShouldBeFalse)
			_, ok = r.Resolve("   ")
			So(ok, ShouldBeFalse)
		})

		Convey("Then entries without an id are skipped", func() {
			So(len(r.List()), ShouldEqual, 2)
			_, ok := r.Resolve("no id")
			So(ok, ShouldBeFalse)
		})

		Convey("Then List is ordered by id", func() {
			list := r.List()
			So(list[0].ID, ShouldEqual, "hrf")
			So(list[1].ID, ShouldEqual, "opensats")
		})

		Convey("Then Get returns payout details", func() {
			c, ok := r.Get("hrf")
			So(ok, ShouldBeTrue)
			So(c.PayoutAddress, ShouldEqual, "hrf@example.com")
		})
	})
}
