// Command dashboard builds the Tableau-ready VP datasets from the raw
// extract: monthly KPIs, loan detail, an exception log and one multi-sheet
// workbook.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"loanetl/internal/config"
	"loanetl/internal/dashboard"
	"loanetl/internal/files"
	"loanetl/internal/infrastructure"
)

func main() {
	source := flag.String("source", "", "path to source xlsx (defaults to newest xlsx in the source directory)")
	outDir := flag.String("out", "", "output directory for the dashboard datasets")
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

	runID := infrastructure.NewRunID()
	logger = infrastructure.WithRunID(logger, runID)

	if *source == "" {
		*source = cfg.Pipeline.SourceFile
	}
	if *source == "" {
		newest, err := files.NewDiscovery(cfg.Pipeline.SourceDir).NewestWorkbook(".")
		if err != nil {
			logger.Error("no source workbook found", "error", err, "source_dir", cfg.Pipeline.SourceDir)
			os.Exit(1)
		}
		*source = newest.Path
	}
	if *outDir == "" {
		*outDir = cfg.Pipeline.DashboardDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := dashboard.NewBuilder(logger).Run(ctx, *source, *outDir, runID)
	if err != nil {
		logger.Error("dashboard build failed", "error", err, "source", *source)
		os.Exit(1)
	}

	logger.Info("build summary written",
		slog.String("fingerprint", summary.RunFingerprint),
		slog.Int("loan_detail_rows", summary.LoanDetailRows),
		slog.Int("vp_month_rows", summary.VPMonthRows))
}
