package config

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Source.BaseURL); err != nil {
		return fmt.Errorf("source.base_url: %w", err)
	}
	if cfg.Source.PageSize < 1 {
		return fmt.Errorf("source.page_size must be >= 1, got %d", cfg.Source.PageSize)
	}
	if cfg.Source.Sort == "" {
		return fmt.Errorf("source.sort must not be empty")
	}

	if cfg.Engine.RequestDelay < 0 {
		return fmt.Errorf("engine.request_delay must be >= 0")
	}
	if cfg.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be >= 0, got %d", cfg.Engine.MaxRetries)
	}
	if cfg.Engine.RetryDelay < 0 {
		return fmt.Errorf("engine.retry_delay must be >= 0")
	}

	if cfg.Renderer.Backend != "rod" && cfg.Renderer.Backend != "chromedp" {
		return fmt.Errorf("renderer.backend must be 'rod' or 'chromedp', got %q", cfg.Renderer.Backend)
	}
	if cfg.Renderer.RenderTimeout <= 0 {
		return fmt.Errorf("renderer.render_timeout must be > 0")
	}
	if cfg.Renderer.WaitSelector == "" {
		return fmt.Errorf("renderer.wait_selector must not be empty")
	}
	if cfg.Renderer.Stealth && cfg.Renderer.Backend != "rod" {
		return fmt.Errorf("renderer.stealth is only supported by the rod backend")
	}

	switch cfg.Archive.Type {
	case "mongo":
		if cfg.Archive.MongoURI == "" || cfg.Archive.Database == "" || cfg.Archive.Collection == "" {
			return fmt.Errorf("archive.mongo_uri, archive.database and archive.collection are required for the mongo archive")
		}
	case "file":
		if cfg.Archive.Dir == "" {
			return fmt.Errorf("archive.dir is required for the file archive")
		}
	case "memory":
	default:
		return fmt.Errorf("archive.type %q is not supported (valid: mongo, file, memory)", cfg.Archive.Type)
	}

	switch cfg.Rows.Type {
	case "postgres":
		if cfg.Rows.PostgresURL == "" {
			return fmt.Errorf("rows.postgres_url (or PG_HOST) is required for the postgres sink")
		}
		if !identPattern.MatchString(cfg.Rows.Table) {
			return fmt.Errorf("rows.table %q is not a valid table name", cfg.Rows.Table)
		}
	case "csv":
		if cfg.Rows.CSVPath == "" {
			return fmt.Errorf("rows.csv_path is required for the csv sink")
		}
	case "memory":
	default:
		return fmt.Errorf("rows.type %q is not supported (valid: postgres, csv, memory)", cfg.Rows.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateSeasons checks an inclusive season range.
func ValidateSeasons(start, end int) error {
	if start < 1917 {
		return fmt.Errorf("%w: start season %d predates the league", types.ErrInvalidSeasonRange, start)
	}
	if end < start {
		return fmt.Errorf("%w: end season %d is before start season %d", types.ErrInvalidSeasonRange, end, start)
	}
	return nil
}

// ValidateURL checks if a URL string is valid for fetching.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
