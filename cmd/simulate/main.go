package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/tally/internal/sim"
)

// Default configuration constants.
const (
	defaultTeams      = 16
	defaultRounds     = 3
	defaultJuried     = 4
	defaultPanelSize  = 3
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultSimTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		teams      = flag.Int("teams", defaultTeams, "Number of teams, rounded up to a multiple of 4")
		rounds     = flag.Int("rounds", defaultRounds, "Number of preliminary rounds")
		juried     = flag.Int("juried", defaultJuried, "Number of juried units to mix in")
		panelSize  = flag.Int("panel", defaultPanelSize, "Judges per unit, 1 or 3")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for the generated tournament (default: tournament_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulation output (default: sim_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		sim.ShowHelp()
		return
	}

	if *panelSize != 1 && *panelSize != 3 {
		os.Stderr.WriteString("panel must be 1 or 3\n")
		return
	}

	// Setup logging
	if err := sim.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	// Create simulation configuration
	config := &sim.Config{
		BaseURL:    *baseURL,
		Teams:      *teams,
		Rounds:     *rounds,
		Juried:     *juried,
		PanelSize:  *panelSize,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the simulation
	if err := sim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
