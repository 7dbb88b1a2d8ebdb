package parser

import (
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// Extractor turns a rendered page into structured rows.
type Extractor interface {
	// Extract returns the rows of one page in table order. Any shape or
	// numeric failure aborts the whole page with a *types.ParseError.
	Extract(html string, season, page int) ([]*types.Row, error)
}
