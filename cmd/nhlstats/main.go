package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/parser"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/planner"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nhlstats",
		Short: "Ingest NHL per-game team statistics",
		Long: `nhlstats renders the paginated team game-by-game stats report for a range
of seasons, archives every rendered page and appends the extracted rows to a
structured store.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(rerunCmd())
	rootCmd.AddCommand(urlCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// urlCmd prints the request URL for a season page.
func urlCmd() *cobra.Command {
	var season, page int
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the report URL for a season page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.ValidateSeasons(season, season); err != nil {
				return err
			}
			if page < 0 {
				return fmt.Errorf("page must be >= 0, got %d", page)
			}
			fmt.Println(planner.New(cfg.Source).URL(season, page))
			return nil
		},
	}
	cmd.Flags().IntVar(&season, "season", 0, "season start year (e.g. 2019 for 2019-2020)")
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page index")
	_ = cmd.MarkFlagRequired("season")
	return cmd
}

// schemaCmd prints the structured store table definition.
func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the CREATE TABLE statement for the row store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Print(parser.TeamGameSchema.CreateTableSQL(cfg.Rows.Table))
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nhlstats %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Source:\n")
			fmt.Printf("  Base URL:          %s\n", cfg.Source.BaseURL)
			fmt.Printf("  Page Size:         %d\n", cfg.Source.PageSize)
			fmt.Printf("  Sort:              %s\n", cfg.Source.Sort)
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Request Delay:     %s\n", cfg.Engine.RequestDelay)
			fmt.Printf("  Max Retries:       %d\n", cfg.Engine.MaxRetries)
			fmt.Printf("  Retry Delay:       %s\n", cfg.Engine.RetryDelay)
			fmt.Printf("  Report Path:       %s\n", cfg.Engine.ReportPath)
			fmt.Printf("\nRenderer:\n")
			fmt.Printf("  Backend:           %s\n", cfg.Renderer.Backend)
			fmt.Printf("  Headless:          %v\n", cfg.Renderer.Headless)
			fmt.Printf("  Render Timeout:    %s\n", cfg.Renderer.RenderTimeout)
			fmt.Printf("  Wait Selector:     %s\n", cfg.Renderer.WaitSelector)
			fmt.Printf("\nArchive:\n")
			fmt.Printf("  Type:              %s\n", cfg.Archive.Type)
			fmt.Printf("  Mongo:             %s %s.%s\n", redact(cfg.Archive.MongoURI), cfg.Archive.Database, cfg.Archive.Collection)
			fmt.Printf("  Dir:               %s\n", cfg.Archive.Dir)
			fmt.Printf("\nRows:\n")
			fmt.Printf("  Type:              %s\n", cfg.Rows.Type)
			fmt.Printf("  Postgres:          %s\n", redact(cfg.Rows.PostgresURL))
			fmt.Printf("  Table:             %s\n", cfg.Rows.Table)
			fmt.Printf("  CSV Path:          %s\n", cfg.Rows.CSVPath)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// redact hides the password of a connection URL.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return dsn[:scheme+3] + user + ":****" + dsn[at:]
	}
	return dsn
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
