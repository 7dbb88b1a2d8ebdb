package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for nhlstats.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"   yaml:"source"`
	Engine   EngineConfig   `mapstructure:"engine"   yaml:"engine"`
	Renderer RendererConfig `mapstructure:"renderer" yaml:"renderer"`
	Archive  ArchiveConfig  `mapstructure:"archive"  yaml:"archive"`
	Rows     RowsConfig     `mapstructure:"rows"     yaml:"rows"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// SourceConfig describes the stats report being paginated.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"         yaml:"base_url"`
	PageSize       int    `mapstructure:"page_size"        yaml:"page_size"`
	GameType       int    `mapstructure:"game_type"        yaml:"game_type"`
	MinGamesPlayed int    `mapstructure:"min_games_played" yaml:"min_games_played"`
	Sort           string `mapstructure:"sort"             yaml:"sort"`
}

// EngineConfig controls the ingestion run.
type EngineConfig struct {
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"`
	MaxRetries   int           `mapstructure:"max_retries"   yaml:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"   yaml:"retry_delay"`
	ReportPath   string        `mapstructure:"report_path"   yaml:"report_path"`
}

// RendererConfig controls the browser automation backend.
type RendererConfig struct {
	Backend       string        `mapstructure:"backend"        yaml:"backend"`
	Headless      bool          `mapstructure:"headless"       yaml:"headless"`
	RenderTimeout time.Duration `mapstructure:"render_timeout" yaml:"render_timeout"`
	WaitSelector  string        `mapstructure:"wait_selector"  yaml:"wait_selector"`
	Settle        time.Duration `mapstructure:"settle"         yaml:"settle"`
	Stealth       bool          `mapstructure:"stealth"        yaml:"stealth"`
	BinPath       string        `mapstructure:"bin_path"       yaml:"bin_path"`
	UserAgent     string        `mapstructure:"user_agent"     yaml:"user_agent"`
}

// ArchiveConfig controls where raw rendered pages are kept.
type ArchiveConfig struct {
	Type       string `mapstructure:"type"       yaml:"type"`
	MongoURI   string `mapstructure:"mongo_uri"  yaml:"mongo_uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
	Dir        string `mapstructure:"dir"        yaml:"dir"`
}

// RowsConfig controls where extracted rows are appended.
type RowsConfig struct {
	Type        string `mapstructure:"type"         yaml:"type"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
	Table       string `mapstructure:"table"        yaml:"table"`
	CSVPath     string `mapstructure:"csv_path"     yaml:"csv_path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        "http://www.nhl.com/stats/teams",
			PageSize:       100,
			GameType:       2,
			MinGamesPlayed: 1,
			Sort:           "points,wins",
		},
		Engine: EngineConfig{
			RequestDelay: 5 * time.Second,
			MaxRetries:   0,
			RetryDelay:   10 * time.Second,
		},
		Renderer: RendererConfig{
			Backend:       "rod",
			Headless:      true,
			RenderTimeout: 30 * time.Second,
			WaitSelector:  "div.rt-tr-group div.rt-td",
			Settle:        500 * time.Millisecond,
		},
		Archive: ArchiveConfig{
			Type:       "mongo",
			MongoURI:   "mongodb://localhost:27017",
			Database:   "nhl",
			Collection: "soup",
			Dir:        "./archive",
		},
		Rows: RowsConfig{
			Type:    "postgres",
			Table:   "games",
			CSVPath: "./output/games.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
