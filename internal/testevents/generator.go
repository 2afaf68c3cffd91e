package testevents

import (
	"context"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/simulate"
	"github.com/okian/pacer/pkg/logger"
)

// generateWorkouts builds the synthetic population and publishes it. Every
// DuplicateEvery-th workout is published twice to exercise deduplication.
func generateWorkouts(ctx context.Context, config *Config, pub Publisher, stats *Stats) []model.RawRecord {
	gen := simulate.NewGenerator(config.Seed, config.Charities...)
	records := gen.Population(config.Owners, config.PerOwner, time.Now().Unix(), config.Days)

	pub.Publish(records...)
	var dups []model.RawRecord
	for i := DuplicateEvery - 1; i < len(records); i += DuplicateEvery {
		dups = append(dups, records[i])
	}
	pub.Publish(dups...)

	stats.RecordsGenerated = len(records)
	stats.DuplicatesPublished = len(dups)
	logger.Get().Info(ctx, "published synthetic workouts",
		logger.Int("owners", len(config.Owners)),
		logger.Int("records", len(records)),
		logger.Int("duplicates", len(dups)),
	)
	return records
}
