package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

const percentageMultiplier = 100.0

// Run executes the complete tournament simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting tally tournament simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", config.Teams),
		logger.Int("rounds", config.Rounds),
		logger.Int("juried", config.Juried),
		logger.Int("panel", config.PanelSize),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the tournament
	tournament, err := generateTournament(ctx, config)
	if err != nil {
		return fmt.Errorf("tournament generation failed: %w", err)
	}
	stats.SubmissionsPlanned = len(tournament.Submissions)

	// Step 3: Seed the assignment snapshot
	if err := seedUnits(ctx, config, tournament, stats); err != nil {
		return fmt.Errorf("unit seeding failed: %w", err)
	}

	// Step 4: Submit judge scores concurrently
	if err := submitScores(ctx, config, tournament.Submissions, stats); err != nil {
		return fmt.Errorf("score submission failed: %w", err)
	}

	// Step 5: Verify every unit finalized with the expected placement
	if err := verifyUnitResults(ctx, config, tournament, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 6: Verify standings against the local recomputation
	if err := verifyStandings(ctx, config, tournament, stats); err != nil {
		return fmt.Errorf("standings verification failed: %w", err)
	}

	// Step 7: Save the tournament to a file
	if err := saveTournamentToFile(ctx, config, tournament); err != nil {
		logger.Get().Warn(ctx, "failed to save tournament to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(url, "", "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the endpoint serves Prometheus metrics)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// seedUnits uploads the generated assignment snapshot as the admin caller.
func seedUnits(ctx context.Context, config *Config, tournament *Tournament, stats *Stats) error {
	logger.Get().Info(ctx, "seeding units", logger.Int("count", len(tournament.Units)))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/units"

	resp, err := client.Post(url, adminUserID, "admin", tournament.Units)
	if err != nil {
		return fmt.Errorf("failed to seed units: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read seed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("seeding failed with status %d: %s", resp.StatusCode, string(body))
	}

	var seeded struct {
		Status string `json:"status"`
		Seeded int    `json:"seeded"`
	}
	if err := json.Unmarshal(body, &seeded); err != nil {
		return fmt.Errorf("failed to parse seed response: %w", err)
	}
	if seeded.Seeded != len(tournament.Units) {
		return fmt.Errorf("seeded %d of %d units", seeded.Seeded, len(tournament.Units))
	}

	stats.UnitsSeeded = seeded.Seeded
	logger.Get().Info(ctx, "units seeded", logger.Int("count", seeded.Seeded))
	return nil
}

// saveTournamentToFile saves the generated tournament to a JSON file.
func saveTournamentToFile(ctx context.Context, config *Config, tournament *Tournament) error {
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "tournament_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(tournament, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tournament: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "tournament saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, scoresPerSecond float64

	if stats.SubmissionsSent > 0 {
		successRate = float64(stats.SubmissionsOK) / float64(stats.SubmissionsSent) * percentageMultiplier
	}

	if stats.Duration > 0 {
		scoresPerSecond = float64(stats.SubmissionsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("unitsSeeded", stats.UnitsSeeded),
		logger.Int("submissionsPlanned", stats.SubmissionsPlanned),
		logger.Int("submissionsSent", stats.SubmissionsSent),
		logger.Int("submissionsOK", stats.SubmissionsOK),
		logger.Int("submissionsDuplicate", stats.SubmissionsDup),
		logger.Int("submissionsFailed", stats.SubmissionsFailed),
		logger.Int("unitsFinalized", stats.UnitsFinalized),
		logger.Int("unitsMismatched", stats.UnitsMismatched),
		logger.Int("standingsRows", stats.StandingsRows),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("scoresPerSecond", scoresPerSecond))
}
