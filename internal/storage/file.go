package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/parser"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// --- Brotli File Archive ---

// FileArchive writes each rendered page to <dir>/<season>/<page>.html.br.
type FileArchive struct {
	dir    string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewFileArchive creates a file archive rooted at dir.
func NewFileArchive(dir string, logger *slog.Logger) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchive{
		dir:    dir,
		logger: logger.With("component", "file_archive"),
	}, nil
}

func (s *FileArchive) Name() string { return "file" }

// Path returns the document path for a (season, page) key.
func (s *FileArchive) Path(season, page int) string {
	return filepath.Join(s.dir, strconv.Itoa(season), strconv.Itoa(page)+".html.br")
}

func (s *FileArchive) Insert(_ context.Context, doc *types.RenderedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.Path(doc.Season, doc.Page)
	if _, err := os.Stat(final); err == nil {
		return types.ErrAlreadyArchived
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create season dir: %w", err)}
	}

	// Compress into a temp file, then hard-link it into place: the link
	// fails if the key appeared meanwhile, and readers never see a
	// half-written document.
	tmp, err := os.CreateTemp(filepath.Dir(final), ".page-*.tmp")
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create temp file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	bw := brotli.NewWriterLevel(tmp, brotli.DefaultCompression)
	if _, err := io.WriteString(bw, doc.HTML); err != nil {
		tmp.Close()
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("compress page: %w", err)}
	}
	if err := bw.Close(); err != nil {
		tmp.Close()
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("flush brotli: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("close temp file: %w", err)}
	}

	if err := os.Link(tmp.Name(), final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return types.ErrAlreadyArchived
		}
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("link %s: %w", final, err)}
	}

	s.count++
	s.logger.Debug("page archived", "season", doc.Season, "page", doc.Page, "path", final)
	return nil
}

// Read decompresses an archived page.
func (s *FileArchive) Read(season, page int) (string, error) {
	f, err := os.Open(s.Path(season, page))
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("decompress page: %w", err)
	}
	return string(b), nil
}

func (s *FileArchive) Close() error {
	s.logger.Info("file archive closing", "dir", s.dir, "total_documents", s.count)
	return nil
}

// --- CSV Rows ---

// CSVRows appends rows to a CSV file with a header matching the schema.
type CSVRows struct {
	path   string
	file   *os.File
	out    io.Writer
	schema parser.Schema
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVRows opens (or creates) a CSV file for appending. The header is
// written only when the file is empty.
func NewCSVRows(outputPath string, schema parser.Schema, logger *slog.Logger) (*CSVRows, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output file: %w", err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(schema.StoredColumns()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
	}

	return &CSVRows{
		path:   outputPath,
		file:   f,
		out:    f,
		schema: schema,
		logger: logger.With("component", "csv_rows"),
	}, nil
}

func (s *CSVRows) Name() string { return "csv" }

// Append encodes the whole page in memory and writes it with one call. A
// write that fails part way is truncated back to the previous end of file,
// so a page is either fully present or absent.
func (s *CSVRows) Append(_ context.Context, rows []*types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		vals := s.schema.Values(r)
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = formatCell(v)
		}
		if err := w.Write(rec); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode row: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode rows: %w", err)}
	}

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("seek end: %w", err)}
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		if terr := s.file.Truncate(offset); terr != nil {
			s.logger.Error("failed to drop partial page", "path", s.path, "offset", offset, "error", terr)
		}
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write rows: %w", err)}
	}
	if err := s.file.Sync(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("sync rows: %w", err)}
	}

	s.count += len(rows)
	return nil
}

func (s *CSVRows) Close() error {
	s.logger.Info("CSV written", "path", s.path, "rows", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// formatCell renders a value from Schema.Values; nil becomes an empty cell.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
