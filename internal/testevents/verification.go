package testevents

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/types"
	"github.com/okian/pacer/pkg/logger"
)

// verifyResults compares the served leaderboard with the expected one.
func verifyResults(ctx context.Context, config *Config, expected leaderboard.RankedList, served types.Board) error {
	logger.Get().Info(ctx, "verifying results")

	if len(served.Entries) != len(expected.Entries) {
		return fmt.Errorf("%w: served %d entries, expected %d", ErrMismatch, len(served.Entries), len(expected.Entries))
	}
	n := len(expected.Entries)
	if config.TopN > 0 {
		n = min(n, config.TopN)
	}
	for i := range n {
		want, got := expected.Entries[i], served.Entries[i]
		if config.Verbose {
			logger.Get().Debug(ctx, "compare",
				logger.Int("position", i+1),
				logger.String("expected", want.Owner),
				logger.String("served", got.Owner),
				logger.Float64("score", got.Score),
			)
		}
		if want.Owner != got.Owner || want.Rank != got.Rank {
			return fmt.Errorf("%w: position %d is %s rank %d, expected %s rank %d",
				ErrMismatch, i+1, got.Owner, got.Rank, want.Owner, want.Rank)
		}
		if math.Abs(want.Score-got.Score) > scoreTolerance {
			return fmt.Errorf("%w: %s scored %.4f, expected %.4f", ErrMismatch, got.Owner, got.Score, want.Score)
		}
	}

	logger.Get().Info(ctx, "leaderboard verified", logger.Int("compared", n))
	return nil
}

// verifyJoined checks that every joined owner is listed on the restricted board.
func verifyJoined(board types.Board, joined []string) error {
	if len(board.Entries) != len(joined) {
		return fmt.Errorf("%w: %s lists %d owners, %d joined", ErrMismatch, board.LeaderboardID, len(board.Entries), len(joined))
	}
	for _, e := range board.Entries {
		if !slices.Contains(joined, e.Owner) {
			return fmt.Errorf("%w: %s lists %s who never joined", ErrMismatch, board.LeaderboardID, e.Owner)
		}
	}
	return verifyOrder(board)
}

// verifyOrder checks that ranks are 1..N and scores never increase.
func verifyOrder(board types.Board) error {
	for i, e := range board.Entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: %s entry %d has rank %d", ErrMismatch, board.LeaderboardID, i+1, e.Rank)
		}
		if i > 0 && e.Score > board.Entries[i-1].Score {
			return fmt.Errorf("%w: %s entry %d outscores entry %d", ErrMismatch, board.LeaderboardID, i+1, i)
		}
	}
	return nil
}

// displayTopPerformers logs the head of the served leaderboard.
func displayTopPerformers(ctx context.Context, board types.Board) {
	top := min(10, len(board.Entries))
	for _, e := range board.Entries[:top] {
		logger.Get().Info(ctx, "top performer",
			logger.Int("rank", e.Rank),
			logger.String("owner", e.Owner),
			logger.Float64("score", e.Score),
			logger.Int("workouts", e.WorkoutCount),
		)
	}
	if len(board.Entries) == 0 {
		return
	}
	sum := 0.0
	for _, e := range board.Entries {
		sum += e.Score
	}
	logger.Get().Info(ctx, "score statistics",
		logger.Float64("average", sum/float64(len(board.Entries))),
		logger.Float64("maximum", board.Entries[0].Score),
		logger.Float64("minimum", board.Entries[len(board.Entries)-1].Score),
	)
}
