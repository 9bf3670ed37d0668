package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/pdf-filer/internal/app"
	"github.com/joseph-ayodele/pdf-filer/internal/common"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config")
		runID      = flag.String("run", "", "run id to export (default: latest runs)")
		out        = flag.String("out", "", "output XLSX path (default: <logs_dir>/pdf-filer-report.xlsx)")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := common.NewLogger(common.LogConfig{Dir: cfg.Paths.LogsDir, Stdout: os.Stderr})
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if *out == "" {
		name := "pdf-filer-report.xlsx"
		if *runID != "" {
			name = "pdf-filer-" + *runID + ".xlsx"
		}
		*out = filepath.Join(cfg.Paths.LogsDir, name)
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	data, err := store.Exporter(logger).ExportDocumentsXLSX(ctx, *runID)
	if err != nil {
		logger.Error("export failed", "run_id", *runID, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Error("failed to create output dir", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write report", "path", *out, "error", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
}
