package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/pacer/internal/adapters/http/api"
	"github.com/okian/pacer/internal/adapters/mq/queue"
	service "github.com/okian/pacer/internal/app"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	board   types.Board
	err     error
	joinErr error
	joined  []string
	owner   string
}

func (m *mockDeps) Leaderboards() []types.Summary {
	return []types.Summary{{ID: "km", Score: "distance", Eligibility: "open"}}
}

func (m *mockDeps) lookup(id string) (types.Board, error) {
	if m.err != nil {
		return types.Board{}, m.err
	}
	if id != "km" {
		return types.Board{}, fmt.Errorf("%w: %q", service.ErrUnknownLeaderboard, id)
	}
	return m.board, nil
}

func (m *mockDeps) Leaderboard(_ context.Context, id string) (types.Board, error) {
	return m.lookup(id)
}

func (m *mockDeps) Teams(_ context.Context, id string) ([]leaderboard.TeamEntry, error) {
	if _, err := m.lookup(id); err != nil {
		return nil, err
	}
	return []leaderboard.TeamEntry{{CharityID: "opensats", Name: "OpenSats", Score: 12, Rank: 1}}, nil
}

func (m *mockDeps) MergedLeaderboard(_ context.Context, id, owner string) (types.Board, error) {
	m.owner = owner
	b, err := m.lookup(id)
	b.Source = types.SourceBaseline
	return b, err
}

func (m *mockDeps) FastLeaderboard(_ context.Context, id string) (types.Board, error) {
	b, err := m.lookup(id)
	b.Source = types.SourceFast
	return b, err
}

func (m *mockDeps) Join(_ context.Context, id, owner string) error {
	if m.joinErr != nil {
		return m.joinErr
	}
	if _, err := m.lookup(id); err != nil {
		return err
	}
	m.joined = append(m.joined, owner)
	return nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func sampleBoard() types.Board {
	return types.Board{
		LeaderboardID: "km",
		Source:        types.SourceStore,
		Complete:      true,
		Entries: []types.Entry{
			{Owner: "alice", DisplayName: "Alice", Score: 10, Rank: 1},
			{Owner: "bob", DisplayName: "bob", Score: 4, Rank: 2},
			{Owner: "carol", DisplayName: "carol", Score: 1, Rank: 3},
		},
	}
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBoard(w *httptest.ResponseRecorder) types.Board {
	var b types.Board
	So(json.NewDecoder(w.Body).Decode(&b), ShouldBeNil)
	return b
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{board: sampleBoard()}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true, "records": 3}}
		mux := http.NewServeMux()
		api.NewServer(deps, stats, 2).Register(context.Background(), mux)

		Convey("Then the health endpoint serves metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats are served as json", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			var got map[string]any
			So(json.NewDecoder(w.Body).Decode(&got), ShouldBeNil)
			So(got["started"], ShouldEqual, true)
			So(got["records"], ShouldEqual, float64(3))
		})

		Convey("Then leaderboards are listed", func() {
			w := serve(mux, http.MethodGet, "/leaderboards", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got []types.Summary
			So(json.NewDecoder(w.Body).Decode(&got), ShouldBeNil)
			So(len(got), ShouldEqual, 1)
			So(got[0].ID, ShouldEqual, "km")
		})

		Convey("Then unknown methods are refused", func() {
			w := serve(mux, http.MethodPost, "/leaderboards/km", "{}")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{board: sampleBoard()}
		mux := http.NewServeMux()
		api.NewServer(deps, &mockStatsProvider{}, 2).Register(context.Background(), mux)

		Convey("When a leaderboard is requested", func() {
			w := serve(mux, http.MethodGet, "/leaderboards/km", "")

			Convey("Then every entry is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				b := decodeBoard(w)
				So(b.Source, ShouldEqual, types.SourceStore)
				So(len(b.Entries), ShouldEqual, 3)
			})
		})

		Convey("When a limit is given", func() {
			w := serve(mux, http.MethodGet, "/leaderboards/km?limit=1", "")

			Convey("Then the entries are truncated", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				b := decodeBoard(w)
				So(len(b.Entries), ShouldEqual, 1)
				So(b.Entries[0].Owner, ShouldEqual, "alice")
			})
		})

		Convey("When the limit is invalid or too large", func() {
			So(serve(mux, http.MethodGet, "/leaderboards/km?limit=zero", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/leaderboards/km?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			w := serve(mux, http.MethodGet, "/leaderboards/km?limit=3", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("When the leaderboard is unknown", func() {
			w := serve(mux, http.MethodGet, "/leaderboards/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)

			var body map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["code"], ShouldEqual, "not_found")
			So(body["message"], ShouldNotBeEmpty)
			So(body, ShouldHaveLength, 2)
		})

		Convey("When the service is not running", func() {
			deps.err = service.ErrNotStarted
			So(serve(mux, http.MethodGet, "/leaderboards/km", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When teams are requested", func() {
			w := serve(mux, http.MethodGet, "/leaderboards/km/teams", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var teams []leaderboard.TeamEntry
			So(json.NewDecoder(w.Body).Decode(&teams), ShouldBeNil)
			So(teams[0].CharityID, ShouldEqual, "opensats")
		})

		Convey("When the merged view is requested", func() {
			Convey("Then the owner is required", func() {
				So(serve(mux, http.MethodGet, "/leaderboards/km/merged", "").Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then the owner is passed through", func() {
				w := serve(mux, http.MethodGet, "/leaderboards/km/merged?owner=bob", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.owner, ShouldEqual, "bob")
				So(decodeBoard(w).Source, ShouldEqual, types.SourceBaseline)
			})
		})

		Convey("When the fast view is requested", func() {
			w := serve(mux, http.MethodGet, "/leaderboards/km/fast?limit=2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			b := decodeBoard(w)
			So(b.Source, ShouldEqual, types.SourceFast)
			So(len(b.Entries), ShouldEqual, 2)
		})
	})
}

func TestJoinHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{board: sampleBoard()}
		mux := http.NewServeMux()
		api.NewServer(deps, &mockStatsProvider{}, 0).Register(context.Background(), mux)

		Convey("When a valid join is posted", func() {
			w := serve(mux, http.MethodPost, "/leaderboards/km/join", `{"owner":"dave"}`)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, "accepted")
				So(deps.joined, ShouldResemble, []string{"dave"})
			})
		})

		Convey("When the body is malformed or empty", func() {
			So(serve(mux, http.MethodPost, "/leaderboards/km/join", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/leaderboards/km/join", `{"owner":"  "}`).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.joined, ShouldBeEmpty)
		})

		Convey("When the leaderboard is unknown", func() {
			So(serve(mux, http.MethodPost, "/leaderboards/nope/join", `{"owner":"dave"}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the background lane is full", func() {
			deps.joinErr = queue.ErrFull
			w := serve(mux, http.MethodPost, "/leaderboards/km/join", `{"owner":"dave"}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Body.String(), ShouldContainSubstring, "backpressure")
		})

		Convey("When the owner is refused by the service", func() {
			deps.joinErr = fmt.Errorf("%w: %q", service.ErrInvalidOwner, "a b")
			So(serve(mux, http.MethodPost, "/leaderboards/km/join", `{"owner":"a b"}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
