package testevents

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/pacer/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends log output to both the console and logFile.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`pacer simulation
================

Runs the cache against an in-memory relay filled with synthetic workouts,
joins a share of the owners over HTTP and checks the served rankings.

Usage:
  go run ./cmd/simulate [options]

Options:
  -owners int
        Number of simulated owners (default 200)
  -per-owner int
        Workouts per owner (default 20)
  -days int
        Days the workouts are spread over (default 30)
  -seed uint
        Generator seed (default 1)
  -joiners int
        Owners joined to the club leaderboard over HTTP (default 20)
  -workers int
        Concurrent HTTP workers (default CPU cores * 2)
  -top int
        Entries compared, 0 compares all (default 50)
  -settle duration
        How long the cache may take to catch up (default 30s)
  -output string
        File the generated workouts are saved to (not saved when empty)
  -log string
        Log file (default: simulate_log_TIMESTAMP.log)
  -verbose
        Log every compared entry
  -help
        Show this help message

Examples:
  go run ./cmd/simulate -owners 1000 -per-owner 50
  go run ./cmd/simulate -seed 7 -verbose -output workouts.json
`)
}
