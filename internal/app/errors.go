package service

import "errors"

// Sentinel errors returned to API consumers.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrUnknownLeaderboard = errors.New("unknown leaderboard")
	ErrInvalidOwner       = errors.New("invalid owner")
)
