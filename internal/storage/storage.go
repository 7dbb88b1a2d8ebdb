package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/parser"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// ArchiveSink keeps raw rendered pages. Documents are immutable: there is
// no update or delete.
type ArchiveSink interface {
	// Insert stores the page under its (season, page) key. A key that is
	// already present yields types.ErrAlreadyArchived and leaves the stored
	// document untouched.
	Insert(ctx context.Context, doc *types.RenderedPage) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// RowSink appends extracted rows to a structured store.
type RowSink interface {
	// Append persists all rows of a single page, or none of them.
	Append(ctx context.Context, rows []*types.Row) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// NewArchive creates the archive sink selected by cfg.Type.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (ArchiveSink, error) {
	switch cfg.Type {
	case "mongo":
		return NewMongoArchive(ctx, cfg.MongoURI, cfg.Database, cfg.Collection, logger)
	case "file":
		return NewFileArchive(cfg.Dir, logger)
	case "memory":
		return NewMemoryArchive(), nil
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", cfg.Type)
	}
}

// NewRowSink creates the structured sink selected by cfg.Type.
func NewRowSink(ctx context.Context, cfg config.RowsConfig, schema parser.Schema, logger *slog.Logger) (RowSink, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresRows(ctx, cfg.PostgresURL, cfg.Table, schema, logger)
	case "csv":
		return NewCSVRows(cfg.CSVPath, schema, logger)
	case "memory":
		return NewMemoryRows(), nil
	default:
		return nil, fmt.Errorf("unsupported rows type: %s", cfg.Type)
	}
}
