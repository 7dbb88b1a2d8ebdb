package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from .env, file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults. CLI
// flags are applied on top by the caller.
func Load(configPath string) (*Config, error) {
	// A missing .env is fine; only the process environment is used then.
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NHLSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("nhlstats")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".nhlstats"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Rows.PostgresURL == "" {
		cfg.Rows.PostgresURL = postgresURLFromEnv()
	}

	return cfg, nil
}

// postgresURLFromEnv builds a connection URL from PG_HOST, PG_PORT, PG_USER,
// PG_PASSWORD and PG_DATABASE. It returns "" when PG_HOST is unset.
func postgresURLFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	port := envOr("PG_PORT", "5432")
	db := envOr("PG_DATABASE", "nhl")

	u := &url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	if user := os.Getenv("PG_USER"); user != "" {
		if pw, ok := os.LookupEnv("PG_PASSWORD"); ok {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("source.base_url", cfg.Source.BaseURL)
	v.SetDefault("source.page_size", cfg.Source.PageSize)
	v.SetDefault("source.game_type", cfg.Source.GameType)
	v.SetDefault("source.min_games_played", cfg.Source.MinGamesPlayed)
	v.SetDefault("source.sort", cfg.Source.Sort)

	v.SetDefault("engine.request_delay", cfg.Engine.RequestDelay)
	v.SetDefault("engine.max_retries", cfg.Engine.MaxRetries)
	v.SetDefault("engine.retry_delay", cfg.Engine.RetryDelay)
	v.SetDefault("engine.report_path", cfg.Engine.ReportPath)

	v.SetDefault("renderer.backend", cfg.Renderer.Backend)
	v.SetDefault("renderer.headless", cfg.Renderer.Headless)
	v.SetDefault("renderer.render_timeout", cfg.Renderer.RenderTimeout)
	v.SetDefault("renderer.wait_selector", cfg.Renderer.WaitSelector)
	v.SetDefault("renderer.settle", cfg.Renderer.Settle)
	v.SetDefault("renderer.stealth", cfg.Renderer.Stealth)
	v.SetDefault("renderer.bin_path", cfg.Renderer.BinPath)
	v.SetDefault("renderer.user_agent", cfg.Renderer.UserAgent)

	v.SetDefault("archive.type", cfg.Archive.Type)
	v.SetDefault("archive.mongo_uri", cfg.Archive.MongoURI)
	v.SetDefault("archive.database", cfg.Archive.Database)
	v.SetDefault("archive.collection", cfg.Archive.Collection)
	v.SetDefault("archive.dir", cfg.Archive.Dir)

	v.SetDefault("rows.type", cfg.Rows.Type)
	v.SetDefault("rows.postgres_url", cfg.Rows.PostgresURL)
	v.SetDefault("rows.table", cfg.Rows.Table)
	v.SetDefault("rows.csv_path", cfg.Rows.CSVPath)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
