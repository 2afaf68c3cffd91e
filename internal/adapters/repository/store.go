// Package repository holds the in-memory Event Store of workout records.
package repository

import (
	"github.com/okian/pacer/internal/domain/model"
)

// DefaultRetentionDays is how long records are kept when no retention is configured.
const DefaultRetentionDays = 60

// Store is the deduplicated, age-bounded collection of workout records.
type Store interface {
	// Insert stores rec unless its ID is already present. Returns true when stored.
	Insert(rec model.WorkoutRecord) bool
	// InsertMany inserts every record and returns how many were new.
	InsertMany(recs []model.WorkoutRecord) int
	// ReplaceAll drops the current contents and stores recs.
	ReplaceAll(recs []model.WorkoutRecord)

	// Get returns the record with id or ErrNotFound.
	Get(id string) (model.WorkoutRecord, error)
	// All returns every record ordered by CreatedAt, then ID.
	All() []model.WorkoutRecord
	// Recent returns the newest n records, newest first.
	Recent(n int) ([]model.WorkoutRecord, error)
	Len() int
	// Version increases on every change of the contents.
	Version() uint64

	QueryByOwner(owner string) []model.WorkoutRecord
	QueryByActivity(kind model.ActivityKind) []model.WorkoutRecord
	// QueryByTimeRange returns records with start <= CreatedAt <= end.
	QueryByTimeRange(start, end int64) []model.WorkoutRecord
	// Query returns records matching every predicate, in time order.
	Query(preds ...Predicate) []model.WorkoutRecord

	// Prune removes records older than now - maxAgeDays*86400 and
	// returns how many were removed.
	Prune(maxAgeDays int) int
}
