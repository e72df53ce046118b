// Command validate checks the normalized tables against the dashboard
// baselines and writes a validation report. Exits non-zero when any check
// fails.
package main

import (
	"flag"
	"log/slog"
	"os"

	"loanetl/internal/config"
	"loanetl/internal/infrastructure"
	"loanetl/internal/validation"
)

func main() {
	dataDir := flag.String("data", "", "directory holding the normalized tables")
	reportDir := flag.String("report", "", "directory to write the validation report to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if *dataDir == "" {
		*dataDir = cfg.Pipeline.TablesDir
	}
	if *reportDir == "" {
		*reportDir = cfg.Pipeline.ReportDir
	}

	report, err := validation.NewValidator(logger, cfg.Baselines).Run(*dataDir, *reportDir)
	if err != nil {
		logger.Error("validation failed", "error", err, "data_dir", *dataDir)
		os.Exit(1)
	}
	if !report.Passed() {
		logger.Error("baseline checks failed",
			slog.Int("loan_count", report.Summary.LoanCountDistinct),
			slog.Int("event_rows", report.Summary.EventRowCount))
		os.Exit(1)
	}
}
