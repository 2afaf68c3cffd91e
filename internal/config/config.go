// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns the defaults; Load layers a YAML file and the environment on top.
// - Durations are configured in milliseconds and read through the *Duration helpers.
// - Errors wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/pacer/internal/adapters/charity"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/scoring"
)

// Join list backends.
const (
	JoinStoreMemory = "memory"
	JoinStoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Relays are the websocket urls records are read from.
	Relays []string `koanf:"relays"`
	// Authors is the population fetched by the periodic scan. Roster and
	// joined members of every leaderboard are added to it.
	Authors []string `koanf:"authors"`
	// PriorityAuthors are fetched in the first round.
	PriorityAuthors []string `koanf:"priority_authors"`
	// PrioritySize is the first-round size when no priority authors are set.
	PrioritySize int `koanf:"priority_size"`
	// BatchSize is the number of authors per later round.
	BatchSize int `koanf:"batch_size"`
	// AuthoritativeFetch replaces the store after a scan where every round succeeded.
	AuthoritativeFetch bool `koanf:"authoritative_fetch"`

	YieldDelayMS         int `koanf:"yield_delay_ms"`
	RoundTimeoutMS       int `koanf:"round_timeout_ms"`
	FastRefreshTimeoutMS int `koanf:"fast_refresh_timeout_ms"`
	RefreshIntervalMS    int `koanf:"refresh_interval_ms"`

	// RetentionDays bounds the age of stored records.
	RetentionDays int `koanf:"retention_days"`
	// WorkoutKind is the record kind of workouts.
	WorkoutKind int `koanf:"workout_kind"`

	// BaselineAuthor publishes the snapshots. Empty disables the baseline path.
	BaselineAuthor        string `koanf:"baseline_author"`
	BaselineDTag          string `koanf:"baseline_d_tag"`
	BaselineMinIntervalMS int    `koanf:"baseline_min_interval_ms"`
	BaselineTimeoutMS     int    `koanf:"baseline_timeout_ms"`

	// TaskQueueSize bounds the background lane.
	TaskQueueSize int `koanf:"task_queue_size"`
	// TaskWorkerCount sets the number of background workers.
	TaskWorkerCount int `koanf:"task_worker_count"`

	// DedupeSize sets the size of the live delivery deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// JoinStore selects where joined owners are kept: memory or redis.
	JoinStore string `koanf:"join_store"`
	RedisURL  string `koanf:"redis_url"`

	ProfileTTLMS int `koanf:"profile_ttl_ms"`

	Charities    []charity.Charity   `koanf:"charities"`
	Leaderboards []LeaderboardConfig `koanf:"leaderboards"`
}

// LeaderboardConfig is the configured form of a leaderboard.Definition.
type LeaderboardConfig struct {
	ID          string   `koanf:"id"`
	Name        string   `koanf:"name"`
	Score       string   `koanf:"score"`
	Activity    string   `koanf:"activity"`
	Start       string   `koanf:"start"` // RFC 3339, empty is open
	End         string   `koanf:"end"`
	ContextID   string   `koanf:"context_id"`
	Eligibility string   `koanf:"eligibility"`
	Roster      []string `koanf:"roster"`
	Goal        float64  `koanf:"goal"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		PrioritySize:          3,
		BatchSize:             5,
		YieldDelayMS:          50,
		RoundTimeoutMS:        8_000,
		FastRefreshTimeoutMS:  2_500,
		RefreshIntervalMS:     300_000,
		RetentionDays:         60,
		WorkoutKind:           model.WorkoutKind,
		BaselineDTag:          "pacer-baseline",
		BaselineMinIntervalMS: 30_000,
		BaselineTimeoutMS:     5_000,
		TaskQueueSize:         1_024,
		TaskWorkerCount:       runtime.NumCPU(),
		DedupeSize:            10_000,
		JoinStore:             JoinStoreMemory,
		ProfileTTLMS:          1_800_000,
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// YieldDelay is the pause between fetch rounds.
func (c *Config) YieldDelay() time.Duration { return ms(c.YieldDelayMS) }

// RoundTimeout bounds one fetch round.
func (c *Config) RoundTimeout() time.Duration { return ms(c.RoundTimeoutMS) }

// FastRefreshTimeout is the hard deadline of a fast refresh.
func (c *Config) FastRefreshTimeout() time.Duration { return ms(c.FastRefreshTimeoutMS) }

// RefreshInterval is the period of the background scan.
func (c *Config) RefreshInterval() time.Duration { return ms(c.RefreshIntervalMS) }

// BaselineMinInterval is the rate-limit window of baseline fetches.
func (c *Config) BaselineMinInterval() time.Duration { return ms(c.BaselineMinIntervalMS) }

// BaselineTimeout bounds one baseline fetch.
func (c *Config) BaselineTimeout() time.Duration { return ms(c.BaselineTimeoutMS) }

// ProfileTTL is how long a profile is cached.
func (c *Config) ProfileTTL() time.Duration { return ms(c.ProfileTTLMS) }

// Validate reports the first configuration mistake.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.PrioritySize < 0:
		return fmt.Errorf("%w: priority_size must not be negative", ErrInvalidConfig)
	case c.RetentionDays <= 0:
		return fmt.Errorf("%w: retention_days must be positive", ErrInvalidConfig)
	case c.RoundTimeoutMS <= 0 || c.FastRefreshTimeoutMS <= 0 || c.BaselineTimeoutMS <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.YieldDelayMS < 0 || c.BaselineMinIntervalMS < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	case c.RefreshIntervalMS <= 0:
		return fmt.Errorf("%w: refresh_interval_ms must be positive", ErrInvalidConfig)
	case c.WorkoutKind < 0:
		return fmt.Errorf("%w: workout_kind must not be negative", ErrInvalidConfig)
	}
	switch c.JoinStore {
	case JoinStoreMemory:
	case JoinStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis_url is required for the redis join store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown join_store %q", ErrInvalidConfig, c.JoinStore)
	}
	if _, err := c.Definitions(); err != nil {
		return err
	}
	return nil
}

// Definitions converts and validates the configured leaderboards.
func (c *Config) Definitions() ([]leaderboard.Definition, error) {
	seen := make(map[string]bool, len(c.Leaderboards))
	defs := make([]leaderboard.Definition, 0, len(c.Leaderboards))
	for _, lc := range c.Leaderboards {
		def, err := lc.Definition()
		if err != nil {
			return nil, err
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("%w: duplicate leaderboard %q", ErrInvalidConfig, def.ID)
		}
		seen[def.ID] = true
		defs = append(defs, def)
	}
	return defs, nil
}

// Definition converts a single leaderboard.
func (lc LeaderboardConfig) Definition() (leaderboard.Definition, error) {
	rule, err := scoring.ParseRule(lc.Score)
	if err != nil {
		return leaderboard.Definition{}, fmt.Errorf("%w: leaderboard %q: %w", ErrInvalidConfig, lc.ID, err)
	}
	elig, err := leaderboard.ParseEligibility(lc.Eligibility)
	if err != nil {
		return leaderboard.Definition{}, fmt.Errorf("%w: leaderboard %q: %w", ErrInvalidConfig, lc.ID, err)
	}
	start, err := unix(lc.Start)
	if err != nil {
		return leaderboard.Definition{}, fmt.Errorf("%w: leaderboard %q start: %w", ErrInvalidConfig, lc.ID, err)
	}
	end, err := unix(lc.End)
	if err != nil {
		return leaderboard.Definition{}, fmt.Errorf("%w: leaderboard %q end: %w", ErrInvalidConfig, lc.ID, err)
	}

	var activity model.ActivityKind
	if strings.TrimSpace(lc.Activity) != "" {
		activity = model.ParseActivityKind(lc.Activity)
		if activity == model.ActivityUnknown {
			return leaderboard.Definition{}, fmt.Errorf("%w: leaderboard %q: unknown activity %q", ErrInvalidConfig, lc.ID, lc.Activity)
		}
	}

	def := leaderboard.Definition{
		ID:          strings.TrimSpace(lc.ID),
		Name:        lc.Name,
		Score:       rule,
		Activity:    activity,
		Start:       start,
		End:         end,
		ContextID:   lc.ContextID,
		Eligibility: elig,
		Roster:      lc.Roster,
		Goal:        lc.Goal,
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if err := def.Validate(); err != nil {
		return leaderboard.Definition{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return def, nil
}

func unix(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
