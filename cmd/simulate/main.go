package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/okian/pacer/internal/adapters/charity"
	"github.com/okian/pacer/internal/adapters/http/api"
	"github.com/okian/pacer/internal/adapters/http/swagger"
	app "github.com/okian/pacer/internal/app"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/scoring"
	"github.com/okian/pacer/internal/simulate"
	"github.com/okian/pacer/internal/testevents"
	"github.com/okian/pacer/pkg/logger"
)

// Default configuration constants.
const (
	defaultOwners      = 200
	defaultPerOwner    = 20
	defaultDays        = 30
	defaultJoiners     = 20
	defaultTopN        = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultSettle      = 30 * time.Second
	requestTimeout     = 10 * time.Second
	refreshInterval    = 250 * time.Millisecond
	clubGoalKm         = 100
	defaultTestTimeout = 10 * time.Minute
)

var charities = []charity.Charity{
	{ID: "opensats", Name: "OpenSats"},
	{ID: "hrf", Name: "Human Rights Foundation"},
}

func main() {
	var (
		owners   = flag.Int("owners", defaultOwners, "Number of simulated owners")
		perOwner = flag.Int("per-owner", defaultPerOwner, "Workouts per owner")
		days     = flag.Int("days", defaultDays, "Days the workouts are spread over")
		seed     = flag.Uint64("seed", 1, "Generator seed")
		joiners  = flag.Int("joiners", defaultJoiners, "Owners joined to the club leaderboard over HTTP")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent HTTP workers")
		topN     = flag.Int("top", defaultTopN, "Entries compared, 0 compares all")
		settle   = flag.Duration("settle", defaultSettle, "How long the cache may take to catch up")
		output   = flag.String("output", "", "File the generated workouts are saved to")
		logFile  = flag.String("log", "", "Log file (default: simulate_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Log every compared entry")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	closer, err := testevents.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	if err := run(ctx, &params{
		owners:   *owners,
		perOwner: *perOwner,
		days:     *days,
		seed:     *seed,
		joiners:  *joiners,
		workers:  *workers,
		topN:     *topN,
		settle:   *settle,
		output:   *output,
		verbose:  *verbose,
	}); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}

type params struct {
	owners, perOwner, days int
	seed                   uint64
	joiners, workers, topN int
	settle                 time.Duration
	output                 string
	verbose                bool
}

// run serves a cache fed by an in-memory relay on a loopback port and
// drives it with the simulation.
func run(ctx context.Context, p *params) error {
	population := simulate.NewGenerator(p.seed).Owners(p.owners)
	mem := simulate.NewMemoryRelay(nil)

	distance := leaderboard.Definition{
		ID:          "sim-km",
		Name:        "Simulated distance",
		Score:       scoring.RuleDistance,
		Eligibility: leaderboard.EligibleOpen,
	}
	club := leaderboard.Definition{
		ID:          "sim-club",
		Name:        "Simulated club challenge",
		Score:       scoring.RuleDistance,
		Eligibility: leaderboard.EligibleJoined,
		Goal:        clubGoalKm,
	}

	svc := app.New(
		app.WithClient(mem),
		app.WithLeaderboards(distance, club),
		app.WithAuthors(population...),
		app.WithCharities(charities...),
		app.WithFetchTimings(time.Millisecond, 0, 0, refreshInterval),
		app.WithLogger(logger.Get()),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.DefaultMaxLimit).Register(ctx, mux)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: requestTimeout}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()
	defer func() {
		_ = srv.Shutdown(context.WithoutCancel(ctx))
	}()

	charityIDs := make([]string, 0, len(charities))
	for _, c := range charities {
		charityIDs = append(charityIDs, c.ID)
	}

	return testevents.Run(ctx, &testevents.Config{
		BaseURL:     "http://" + ln.Addr().String(),
		Leaderboard: distance,
		JoinBoard:   club.ID,
		Owners:      population,
		PerOwner:    p.perOwner,
		Days:        p.days,
		Seed:        p.seed,
		Charities:   charityIDs,
		Joiners:     p.joiners,
		Workers:     max(p.workers, 1),
		Timeout:     requestTimeout,
		Settle:      p.settle,
		TopN:        p.topN,
		OutputFile:  p.output,
		Verbose:     p.verbose,
	}, mem)
}
