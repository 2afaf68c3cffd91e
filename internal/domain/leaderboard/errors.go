package leaderboard

import "errors"

// Sentinel errors for leaderboard definitions.
var (
	ErrInvalidDefinition  = errors.New("invalid leaderboard definition")
	ErrUnknownEligibility = errors.New("unknown eligibility rule")
)
