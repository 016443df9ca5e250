// Package sim drives a full simulated tournament against a running tally
// instance: it seeds assignments, submits judge scores concurrently, then
// cross-checks results and standings against a local recomputation.
package sim

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "sim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the tournament simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Tally Tournament Simulator
==========================

A concurrent tool for exercising the tally scoring pipeline end to end.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -teams int
        Number of teams, rounded up to a multiple of 4 (default 16)
  -rounds int
        Number of preliminary rounds (default 3)
  -juried int
        Number of juried units to mix in (default 4)
  -panel int
        Judges per unit, 1 or 3 (default 3)
  -workers int
        Number of concurrent submission workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for the generated tournament (default: tournament_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: sim_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/simulate/main.go

  # A bigger bracket with single-judge panels
  go run cmd/simulate/main.go -teams 64 -rounds 5 -panel 1

  # Verbose run against a non-default port
  go run cmd/simulate/main.go -verbose -url http://localhost:8080
`)
}
