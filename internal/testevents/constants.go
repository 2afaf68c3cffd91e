package testevents

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PollInterval         = 200 * time.Millisecond
	PercentageMultiplier = 100
	DuplicateEvery       = 10 // every Nth workout is published twice
	scoreTolerance       = 1e-6
)
