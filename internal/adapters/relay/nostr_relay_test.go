package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/okian/pacer/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// wsRelay answers REQ with its stored events and EOSE, and forwards
// events sent on live to every open subscription.
type wsRelay struct {
	stored []nostr.Event
	live   chan nostr.Event
}

func (f *wsRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	var mu sync.Mutex
	subs := make(map[string]bool)
	send := func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.Write(ctx, websocket.MessageText, b)
	}
	sendEvent := func(id string, ev nostr.Event) {
		b, _ := nostr.EventEnvelope{SubscriptionID: &id, Event: ev}.MarshalJSON()
		send(b)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.live:
				mu.Lock()
				ids := make([]string, 0, len(subs))
				for id := range subs {
					ids = append(ids, id)
				}
				mu.Unlock()
				for _, id := range ids {
					sendEvent(id, ev)
				}
			}
		}
	}()

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		switch env := nostr.ParseMessage(string(msg)).(type) {
		case *nostr.ReqEnvelope:
			for _, ev := range f.stored {
				sendEvent(env.SubscriptionID, ev)
			}
			b, _ := nostr.EOSEEnvelope(env.SubscriptionID).MarshalJSON()
			send(b)
			mu.Lock()
			subs[env.SubscriptionID] = true
			mu.Unlock()
		case *nostr.CloseEnvelope:
			mu.Lock()
			delete(subs, string(*env))
			mu.Unlock()
		}
	}
}

func signedWorkout(sk string, at int64, km string) nostr.Event {
	ev := nostr.Event{
		CreatedAt: nostr.Timestamp(at),
		Kind:      model.WorkoutKind,
		Tags:      nostr.Tags{{"exercise", "running"}, {"distance", km, "km"}},
	}
	if err := ev.Sign(sk); err != nil {
		panic(err)
	}
	return ev
}

func TestNostrClientAgainstRelay(t *testing.T) {
	Convey("Given a relay holding two stored workouts", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sk := nostr.GeneratePrivateKey()
		pk, err := nostr.GetPublicKey(sk)
		So(err, ShouldBeNil)
		now := time.Now().Unix()
		fake := &wsRelay{
			stored: []nostr.Event{signedWorkout(sk, now-200, "5"), signedWorkout(sk, now-100, "3")},
			live:   make(chan nostr.Event, 1),
		}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		c := NewNostrClient(ctx, []string{"ws://" + strings.TrimPrefix(srv.URL, "http://")})
		defer c.Close()
		filter := model.Filter{Kinds: []int{model.WorkoutKind}, Authors: []string{pk}}

		Convey("When fetching once", func() {
			recs, err := c.FetchOnce(ctx, filter)

			Convey("Then the stored workouts are returned", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(recs[0].Owner, ShouldEqual, pk)
			})
		})

		Convey("When subscribing", func() {
			sub, err := c.Subscribe(ctx, filter)
			So(err, ShouldBeNil)

			var got []model.RawRecord
			for len(got) < 2 {
				select {
				case r := <-sub.Records:
					got = append(got, r)
				case <-ctx.Done():
					t.Fatal("stored workouts not delivered")
				}
			}
			select {
			case <-sub.EOSE:
			case <-ctx.Done():
				t.Fatal("end of stored events not signalled")
			}

			Convey("Then a live workout arrives on the same subscription", func() {
				live := signedWorkout(sk, now, "7")
				fake.live <- live

				select {
				case r := <-sub.Records:
					So(r.ID, ShouldEqual, live.ID)
				case <-time.After(5 * time.Second):
					So("live workout", ShouldBeEmpty)
				}
			})
		})
	})
}
