// Command forecast prints the pipeline forecast or board for a seed file,
// optionally with a CSV import applied on top.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/dealflow/internal/app"
	"github.com/MrJamesThe3rd/dealflow/internal/config"
	"github.com/MrJamesThe3rd/dealflow/internal/report"
)

func main() {
	seedFile := flag.String("seed", "", "YAML seed file (defaults to the bundled demo pipeline)")
	noSeed := flag.Bool("empty", false, "start from an empty pipeline")
	importFile := flag.String("import", "", "CSV file to import before reporting")
	formatName := flag.String("format", "text", "output format: text, csv, markdown, html")
	board := flag.Bool("board", false, "print the stage board instead of the forecast table")
	flag.Parse()

	if err := run(*seedFile, *noSeed, *importFile, *formatName, *board); err != nil {
		slog.Error("forecast failed", "error", err)
		os.Exit(1)
	}
}

func run(seedFile string, noSeed bool, importFile, formatName string, board bool) error {
	_ = godotenv.Load()

	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.Pipeline.Seed = !noSeed
	if seedFile != "" {
		cfg.Pipeline.SeedFile = seedFile
	}

	log := cfg.Logger(os.Stderr)
	slog.SetDefault(log)

	ctx := context.Background()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	if importFile != "" {
		if err := importCSV(ctx, services, importFile); err != nil {
			return err
		}
	}

	if board {
		cols, err := services.Forecast.Board(ctx)
		if err != nil {
			return err
		}

		return report.Board(os.Stdout, cols, format)
	}

	r, err := services.Forecast.Report(ctx)
	if err != nil {
		return err
	}

	return report.Forecast(os.Stdout, r, format)
}

func importCSV(ctx context.Context, services *app.Services, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	result, err := services.Import.Import(ctx, f)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	for _, r := range result.Rejected {
		slog.Warn("row rejected", "line", r.Line, "title", r.Title, "errors", r.Errors.Error())
	}

	return nil
}
