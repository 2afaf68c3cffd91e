package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete simulation against the service at
// config.BaseURL, publishing workouts through pub.
func Run(ctx context.Context, config *Config, pub Publisher) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting pacer simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("leaderboard", config.Leaderboard.ID),
		logger.Int("owners", len(config.Owners)),
		logger.Int("perOwner", config.PerOwner),
		logger.Int("joiners", config.Joiners),
		logger.Int("workers", config.Workers),
		logger.Duration("settle", config.Settle),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate and publish workouts
	records := generateWorkouts(ctx, config, pub, stats)

	// Step 3: Join a share of the owners
	joiners := config.Owners[:min(config.Joiners, len(config.Owners))]
	if config.JoinBoard != "" && len(joiners) > 0 {
		joinOwners(ctx, config, joiners, stats)
	}

	// Step 4: Wait for the cache to catch up
	expected, want := expectedRanking(ctx, records, config.Leaderboard)
	stats.RecordsExpected = want
	if err := waitForRecords(ctx, config, want); err != nil {
		return err
	}

	// Step 5: Verify the cached leaderboard
	board, err := getBoard(ctx, config, config.Leaderboard.ID, "")
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.BoardEntries = len(board.Entries)
	if err := verifyResults(ctx, config, expected, board); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}
	displayTopPerformers(ctx, board)

	// Step 6: Check the relay-direct view
	fast, err := getBoard(ctx, config, config.Leaderboard.ID, "/fast")
	if err != nil {
		return fmt.Errorf("fast leaderboard retrieval failed: %w", err)
	}
	stats.FastEntries = len(fast.Entries)
	stats.FastComplete = fast.Complete
	if err := verifyOrder(fast); err != nil {
		return fmt.Errorf("fast leaderboard verification failed: %w", err)
	}

	// Step 7: Check the joined leaderboard
	if config.JoinBoard != "" && stats.JoinsAccepted > 0 {
		if err := waitForJoined(ctx, config, joiners); err != nil {
			return fmt.Errorf("joined leaderboard verification failed: %w", err)
		}
	}

	// Step 8: Save workouts to file
	if config.OutputFile != "" {
		if err := saveRecordsToFile(ctx, config.OutputFile, records); err != nil {
			logger.Get().Warn(ctx, "failed to save workouts to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	resp, err := newHTTPClient(config).Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	_, _ = readResponseBody(resp)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveRecordsToFile writes the generated workouts as a JSON array.
func saveRecordsToFile(ctx context.Context, filename string, records []model.RawRecord) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workouts: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "workouts saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var joinRate, recordsPerSecond float64
	if stats.JoinsSubmitted > 0 {
		joinRate = float64(stats.JoinsAccepted) / float64(stats.JoinsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		recordsPerSecond = float64(stats.RecordsExpected) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("duplicatesPublished", stats.DuplicatesPublished),
		logger.Int("recordsExpected", stats.RecordsExpected),
		logger.Int("joinsSubmitted", stats.JoinsSubmitted),
		logger.Int("joinsAccepted", stats.JoinsAccepted),
		logger.Int("joinsFailed", stats.JoinsFailed),
		logger.Int("boardEntries", stats.BoardEntries),
		logger.Int("fastEntries", stats.FastEntries),
		logger.Bool("fastComplete", stats.FastComplete),
		logger.Duration("duration", stats.Duration),
		logger.Float64("joinRate", joinRate),
		logger.Float64("recordsPerSecond", recordsPerSecond),
	)
}
