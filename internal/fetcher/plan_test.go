package fetcher

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func authors(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("a%02d", i)
	}
	return out
}

func sizes(rounds []Round) []int {
	out := make([]int, len(rounds))
	for i, r := range rounds {
		out[i] = len(r.Authors)
	}
	return out
}

func TestPlan(t *testing.T) {
	Convey("Given 13 authors, a priority size of 3 and batches of 3", t, func() {
		rounds := Plan(authors(13), nil, 3, 3)

		Convey("Then the rounds are [3][3][3][3][1] with the priority round first", func() {
			So(sizes(rounds), ShouldResemble, []int{3, 3, 3, 3, 1})
			So(rounds[0].Priority, ShouldBeTrue)
			So(rounds[0].Authors, ShouldResemble, []string{"a00", "a01", "a02"})
			for i, r := range rounds {
				So(r.Index, ShouldEqual, i)
				if i > 0 {
					So(r.Priority, ShouldBeFalse)
				}
			}
			So(rounds[4].Authors, ShouldResemble, []string{"a12"})
		})
	})

	Convey("Given explicit priority authors", t, func() {
		rounds := Plan(authors(6), []string{"a04", "zz", "a01"}, 3, 2)

		Convey("Then only those present in the list are prioritised, in list order", func() {
			So(rounds[0].Authors, ShouldResemble, []string{"a01", "a04"})
			So(sizes(rounds), ShouldResemble, []int{2, 2, 2})
			So(rounds[1].Authors, ShouldResemble, []string{"a00", "a02"})
		})
	})

	Convey("Given duplicates and blanks", t, func() {
		rounds := Plan([]string{"x", "", "y", "x", "z"}, nil, 1, 5)
		So(sizes(rounds), ShouldResemble, []int{1, 2})
		So(rounds[1].Authors, ShouldResemble, []string{"y", "z"})
	})

	Convey("Given no priority size", t, func() {
		rounds := Plan(authors(4), nil, 0, 0)
		So(sizes(rounds), ShouldResemble, []int{4})
		So(rounds[0].Priority, ShouldBeFalse)
	})

	Convey("Given fewer authors than the priority size", t, func() {
		rounds := Plan(authors(2), nil, 5, 3)
		So(sizes(rounds), ShouldResemble, []int{2})
	})

	Convey("Given no authors", t, func() {
		So(Plan(nil, nil, 3, 3), ShouldBeEmpty)
	})
}
