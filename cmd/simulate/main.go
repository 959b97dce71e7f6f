package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/arbiter/internal/simulation"
)

// Default configuration constants.
const (
	defaultNumActions = 10000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultSimTimeout = 10 * time.Minute
)

func main() {
	var (
		numActions = flag.Int("actions", defaultNumActions, "Number of actions to generate and judge")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent judgment submitters")
		outputFile = flag.String("output", "", "Output file for outcome summaries (default: simulation_results_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulation output (default: simulation_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulation.ShowHelp()
		return
	}

	if err := simulation.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	cfg := &simulation.Config{
		NumActions: *numActions,
		Workers:    *workers,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := simulation.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
