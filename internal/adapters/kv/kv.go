// Package kv stores small string sets, such as the owners that joined a
// leaderboard.
package kv

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned for a blank set name or member.
var ErrEmptyKey = errors.New("empty set or member")

// Store is a collection of named string sets.
type Store interface {
	// Add puts member into set. Returns true when it was not there yet.
	Add(ctx context.Context, set, member string) (bool, error)
	Remove(ctx context.Context, set, member string) error
	// Members returns the members of set in ascending order.
	Members(ctx context.Context, set string) ([]string, error)
	Contains(ctx context.Context, set, member string) (bool, error)
	Close() error
}
