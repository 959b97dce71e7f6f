package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/arbiter/pkg/logger"
)

// File permission constants.
const (
	logFilePermission   = 0600
	directoryPermission = 0750
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if !verbose {
		_ = logger.SetLevelString("warn")
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_log_" + timestamp + ".log"
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

// saveResultsToFile writes the per-action outcomes to a JSON file.
func saveResultsToFile(ctx context.Context, config *Config, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "simulation_results_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	logger.Get().Info(ctx, "results saved to file", logger.String("filename", filename))
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Arbiter Judgment Simulation Tool
================================

A concurrent tool for exercising the evaluation engine end to end with a
generated population of actions, reviewers, and judgments.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -actions int
        Number of actions to generate and judge (default 10000)
  -workers int
        Number of concurrent judgment submitters (default CPU cores * 2)
  -output string
        Output file for outcome summaries (default: simulation_results_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: simulation_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/simulate/main.go

  # Simulate with custom parameters
  go run cmd/simulate/main.go -actions 50000 -workers 16

  # Simulate with verbose output
  go run cmd/simulate/main.go -verbose -actions 1000
`)
}
