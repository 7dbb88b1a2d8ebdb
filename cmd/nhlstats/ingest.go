package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/engine"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/fetcher"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/parser"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/storage"
)

var (
	startSeason int
	endSeason   int
	delay       string
	archiveType string
	rowsType    string
	reportPath  string
	backend     string
	maxRetries  int
	dryRun      bool
)

// errRunFailed makes the process exit non-zero after a run that completed
// with failures. The details are already logged.
var errRunFailed = errors.New("run finished with failures")

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&delay, "delay", "", "minimum delay between page renders (e.g. 5s)")
	cmd.Flags().StringVar(&archiveType, "archive", "", "archive backend: mongo, file, memory")
	cmd.Flags().StringVar(&rowsType, "rows", "", "row store backend: postgres, csv, memory")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the run report as JSON to this path")
	cmd.Flags().StringVar(&backend, "renderer", "", "browser backend: rod, chromedp")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "retries per render on transient errors (-1 = use config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render and extract, but keep everything in memory")
}

// ingestCmd creates the "ingest" subcommand.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a range of seasons",
		Long: `Render every page of the team game-by-game report for each season in
[--start, --end], archive the rendered markup and append the extracted rows.
A failing page or season is logged and skipped; the run continues.`,
		RunE: runIngest,
	}

	cmd.Flags().IntVar(&startSeason, "start", 0, "first season start year (e.g. 2019 for 2019-2020)")
	cmd.Flags().IntVar(&endSeason, "end", 0, "last season start year (defaults to --start)")
	_ = cmd.MarkFlagRequired("start")
	addRunFlags(cmd)
	return cmd
}

// rerunCmd creates the "rerun" subcommand.
func rerunCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "rerun",
		Short: "Repeat the failed pages and seasons of a previous run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := engine.LoadReport(from)
			if err != nil {
				return err
			}
			if len(prev.Failures) == 0 {
				fmt.Println("Nothing to rerun: the report has no failures.")
				return nil
			}
			return execute(func(ctx context.Context, eng *engine.Engine) (*engine.Report, error) {
				return eng.Rerun(ctx, prev.Failures)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "run report written by a previous ingest")
	_ = cmd.MarkFlagRequired("from")
	addRunFlags(cmd)
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	end := endSeason
	if end == 0 {
		end = startSeason
	}
	if err := config.ValidateSeasons(startSeason, end); err != nil {
		return err
	}
	return execute(func(ctx context.Context, eng *engine.Engine) (*engine.Report, error) {
		return eng.Run(ctx, startSeason, end)
	})
}

// execute loads config, wires the engine and hands it to run.
func execute(run func(ctx context.Context, eng *engine.Engine) (*engine.Report, error)) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping after the current page", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	eng, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics := eng.Metrics()
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		defer metrics.Close()
	}

	start := time.Now()
	report, err := run(ctx, eng)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Seasons:   %d attempted, %d succeeded, %d failed\n",
		report.SeasonsAttempted, report.SeasonsSucceeded, report.SeasonsFailed)
	fmt.Printf("   Pages:     %d attempted, %d succeeded, %d failed\n",
		report.PagesAttempted, report.PagesSucceeded, report.PagesFailed)
	fmt.Printf("   Rows:      %d stored\n", report.RowsStored)
	for _, f := range report.Failures {
		where := fmt.Sprintf("season %d page %d", f.Season, f.Page)
		if f.Page == engine.SeasonLevel {
			where = fmt.Sprintf("season %d", f.Season)
		}
		fmt.Printf("   Failed:    %s at %s: %s\n", where, f.Stage, f.Error)
	}
	if cfg.Engine.ReportPath != "" {
		fmt.Printf("   Report:    %s\n", cfg.Engine.ReportPath)
	}

	if report.Failed() {
		return errRunFailed
	}
	return nil
}

// buildEngine opens the renderer and both sinks and attaches them to a new
// engine. Anything opened before a failure is closed again.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	archive, err := storage.NewArchive(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	rows, err := storage.NewRowSink(ctx, cfg.Rows, parser.TeamGameSchema, logger)
	if err != nil {
		archive.Close()
		return nil, fmt.Errorf("open row store: %w", err)
	}

	renderer, err := fetcher.New(cfg.Renderer, logger)
	if err != nil {
		archive.Close()
		rows.Close()
		return nil, fmt.Errorf("start renderer: %w", err)
	}

	eng := engine.New(cfg, logger)
	eng.SetRenderer(renderer)
	eng.SetArchive(archive)
	eng.SetRowSink(rows)
	return eng, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) error {
	if delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid --delay %q: %w", delay, err)
		}
		cfg.Engine.RequestDelay = d
	}
	if archiveType != "" {
		cfg.Archive.Type = archiveType
	}
	if rowsType != "" {
		cfg.Rows.Type = rowsType
	}
	if reportPath != "" {
		cfg.Engine.ReportPath = reportPath
	}
	if backend != "" {
		cfg.Renderer.Backend = backend
	}
	if maxRetries >= 0 {
		cfg.Engine.MaxRetries = maxRetries
	}
	if dryRun {
		cfg.Archive.Type = "memory"
		cfg.Rows.Type = "memory"
	}
	return nil
}
