// Package testevents drives a running cache with synthetic workouts and
// checks the served rankings against a locally computed expectation.
package testevents

import (
	"time"

	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL     string                 // Base URL of the service
	Leaderboard leaderboard.Definition // served leaderboard to verify
	JoinBoard   string                 // leaderboard the joiners are registered with
	Owners      []string               // simulated population
	PerOwner    int                    // workouts per owner
	Days        int                    // window the workouts are spread over
	Seed        uint64                 // generator seed
	Charities   []string               // charity tags used by the generator
	Joiners     int                    // owners joined over HTTP
	Workers     int                    // concurrent HTTP workers
	Timeout     time.Duration          // HTTP request timeout
	Settle      time.Duration          // how long the cache may take to catch up
	TopN        int                    // entries compared, 0 compares all
	OutputFile  string                 // file the generated workouts are saved to
	Verbose     bool                   // log every compared entry
}

// Publisher receives the generated workouts.
type Publisher interface {
	Publish(records ...model.RawRecord)
}

// AckResponse represents the response to a join.
type AckResponse struct {
	Status string `json:"status"`
}

// Stats holds run statistics.
type Stats struct {
	RecordsGenerated    int
	DuplicatesPublished int
	RecordsExpected     int
	JoinsSubmitted      int
	JoinsAccepted       int
	JoinsFailed         int
	BoardEntries        int
	FastEntries         int
	FastComplete        bool
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
