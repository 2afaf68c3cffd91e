package testevents

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pacer/internal/adapters/repository"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/normalize"
	"github.com/okian/pacer/internal/domain/types"
	"github.com/okian/pacer/pkg/logger"
)

// expectedRanking computes what the cache should serve for def from the
// published workouts. It returns the ranking and the number of distinct
// records the cache should hold.
func expectedRanking(ctx context.Context, records []model.RawRecord, def leaderboard.Definition) (leaderboard.RankedList, int) {
	store := repository.NewTreapStore()
	store.InsertMany(normalize.New().NormalizeBatch(ctx, records))
	store.Prune(repository.DefaultRetentionDays)
	recs := store.Query(repository.InRange(def.Start, def.End))
	return leaderboard.Aggregate(recs, def, nil, nil), store.Len()
}

// waitForRecords polls /stats until the cache holds want records.
func waitForRecords(ctx context.Context, config *Config, want int) error {
	logger.Get().Info(ctx, "waiting for the cache to settle", logger.Int("records", want))

	client := newHTTPClient(config)
	deadline := time.Now().Add(config.Settle)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	have := 0
	for {
		var stats map[string]any
		if err := client.getJSON(ctx, config.BaseURL+"/stats", &stats); err == nil {
			if n, ok := stats["records"].(float64); ok {
				have = int(n)
			}
		}
		if have >= want {
			logger.Get().Info(ctx, "cache settled", logger.Int("records", have))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d records after %s", ErrNotSettled, have, want, config.Settle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForJoined polls the join leaderboard until it lists exactly the
// joined owners. Joins are applied asynchronously.
func waitForJoined(ctx context.Context, config *Config, joined []string) error {
	deadline := time.Now().Add(config.Settle)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		board, err := getBoard(ctx, config, config.JoinBoard, "")
		if err == nil {
			err = verifyJoined(board, joined)
		}
		if err == nil {
			logger.Get().Info(ctx, "joined leaderboard verified", logger.Int("entries", len(board.Entries)))
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// getBoard fetches a leaderboard view. suffix selects the view, e.g. "/fast".
func getBoard(ctx context.Context, config *Config, id, suffix string) (types.Board, error) {
	var board types.Board
	url := fmt.Sprintf("%s/leaderboards/%s%s", config.BaseURL, id, suffix)
	if err := newHTTPClient(config).getJSON(ctx, url, &board); err != nil {
		return types.Board{}, err
	}
	return board, nil
}
