package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/pacer/internal/adapters/http/api"
	"github.com/okian/pacer/internal/adapters/http/swagger"
	"github.com/okian/pacer/internal/adapters/kv"
	app "github.com/okian/pacer/internal/app"
	"github.com/okian/pacer/internal/config"
	"github.com/okian/pacer/internal/simulate"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

func setenv(pairs map[string]string) func() {
	for k, v := range pairs {
		_ = os.Setenv(k, v)
	}
	return func() {
		for k := range pairs {
			_ = os.Unsetenv(k)
		}
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			defer setenv(map[string]string{
				"PACER_ADDR":              ":8080",
				"PACER_TASK_QUEUE_SIZE":   "1000",
				"PACER_TASK_WORKER_COUNT": "4",
				"PACER_RELAYS":            "wss://a.example, wss://b.example",
			})()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.TaskWorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Relays, convey.ShouldResemble, []string{"wss://a.example", "wss://b.example"})
			})
		})

		convey.Convey("When the memory join store is configured", func() {
			cfg := config.New(context.Background())
			joins, err := openJoinStore(context.Background(), cfg)

			convey.Convey("Then an in-memory store is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := joins.(*kv.Memory)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(joins.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation", func() {
			cfg := config.New(context.Background())
			cfg.BaselineAuthor = "npub-baseline"
			cfg.Leaderboards = []config.LeaderboardConfig{{ID: "km", Score: "distance"}}

			opts, err := serviceOptions(cfg, kv.NewMemory())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the service lists the configured leaderboards", func() {
				svc := app.New(append(opts, app.WithClient(simulate.NewMemoryRelay(nil)), app.WithBackgroundFetch(false))...)
				convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
				defer svc.Stop()

				boards := svc.Leaderboards()
				convey.So(boards, convey.ShouldHaveLength, 1)
				convey.So(boards[0].ID, convey.ShouldEqual, "km")
			})
		})

		convey.Convey("When a leaderboard is misconfigured", func() {
			cfg := config.New(context.Background())
			cfg.Leaderboards = []config.LeaderboardConfig{{ID: "km", Score: "distance"}, {ID: "km", Score: "distance"}}

			convey.Convey("Then the options are rejected", func() {
				_, err := serviceOptions(cfg, kv.NewMemory())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()

			convey.Convey("Then the routes can be registered", func() {
				mux := http.NewServeMux()
				convey.So(func() {
					swagger.Register(context.Background(), mux)
					api.NewServer(svc, svc, api.DefaultMaxLimit).Register(context.Background(), mux)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.So(metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry())), convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		svc := app.New()

		convey.Convey("When the updaters run until their context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("When metrics are updated directly", func() {
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
