package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// Default selectors for the react-table markup the stats site renders.
const (
	DefaultRowSelector  = "div.rt-tr-group"
	DefaultCellSelector = "div.rt-td"
)

// TableExtractor reads fixed-position cells out of row-group elements.
type TableExtractor struct {
	schema       Schema
	rowSelector  string
	cellSelector string
	logger       *slog.Logger
}

// TableOption configures the TableExtractor.
type TableOption func(*TableExtractor)

// WithSelectors overrides the row-group and cell selectors.
func WithSelectors(row, cell string) TableOption {
	return func(te *TableExtractor) {
		te.rowSelector = row
		te.cellSelector = cell
	}
}

// NewTableExtractor creates an extractor for the given schema.
func NewTableExtractor(schema Schema, logger *slog.Logger, opts ...TableOption) *TableExtractor {
	te := &TableExtractor{
		schema:       schema,
		rowSelector:  DefaultRowSelector,
		cellSelector: DefaultCellSelector,
		logger:       logger.With("component", "table_extractor"),
	}
	for _, opt := range opts {
		opt(te)
	}
	return te
}

// Extract implements Extractor.
func (te *TableExtractor) Extract(html string, season, page int) ([]*types.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &types.ParseError{Season: season, Page: page, Row: -1, Err: err}
	}

	need := te.schema.CellCount()
	var rows []*types.Row
	var parseErr error

	doc.Find(te.rowSelector).EachWithBreak(func(i int, group *goquery.Selection) bool {
		cells := group.Find(te.cellSelector)
		if cells.Length() > 0 && isFiller(cells.First().Text()) {
			return false
		}
		if cells.Length() < need {
			parseErr = &types.ParseError{Season: season, Page: page, Row: i, Err: types.ErrShortRow}
			return false
		}

		row := &types.Row{Season: season, Page: page}
		for _, col := range te.schema.Columns {
			text := strings.TrimSpace(cells.Eq(col.Cell).Text())
			if err := col.set(row, text); err != nil {
				parseErr = &types.ParseError{Season: season, Page: page, Row: i, Column: col.Name, Err: err}
				return false
			}
		}
		rows = append(rows, row)
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}

	te.logger.Debug("page extracted", "season", season, "page", page, "rows", len(rows))
	return rows, nil
}

// isFiller reports whether a first cell marks the padding rows that follow
// the real data. goquery decodes &nbsp; to U+00A0, which TrimSpace drops;
// the literal entity shows up when the markup was escaped twice.
func isFiller(firstCell string) bool {
	t := strings.TrimSpace(firstCell)
	return t == "" || t == "&nbsp;"
}
