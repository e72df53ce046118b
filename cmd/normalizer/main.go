// Command normalizer splits the wide compensation extract into third normal
// form CSV tables plus a run manifest.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"loanetl/internal/config"
	"loanetl/internal/dataprocessing"
	"loanetl/internal/files"
	"loanetl/internal/infrastructure"
)

func main() {
	source := flag.String("source", "", "path to source xlsx (defaults to newest xlsx in the source directory)")
	outDir := flag.String("out", "", "output directory for the normalized tables")
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
		*outDir = cfg.Pipeline.TablesDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := dataprocessing.NewSplitter(logger).Run(ctx, *source, *outDir)
	if err != nil {
		logger.Error("normalization failed", "error", err, "source", *source)
		os.Exit(1)
	}

	for _, e := range result.Tables {
		logger.Info("table written",
			slog.String("table", e.Table),
			slog.Int("rows", e.Rows),
			slog.String("path", e.Path))
	}
}
