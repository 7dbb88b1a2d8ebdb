// Package planner builds the stats-site request URLs for a season and
// discovers how many pages a season spans.
package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// totalPagesXPath matches the react-table pagination span whose class list
// contains "-totalPages".
const totalPagesXPath = `//span[contains(concat(' ', normalize-space(@class), ' '), ' -totalPages ')]`

// Planner builds canonical request URLs.
type Planner struct {
	baseURL        string
	pageSize       int
	gameType       int
	minGamesPlayed int
	sort           string
}

// New creates a Planner from the source configuration.
func New(cfg config.SourceConfig) *Planner {
	return &Planner{
		baseURL:        strings.TrimRight(cfg.BaseURL, "?&"),
		pageSize:       cfg.PageSize,
		gameType:       cfg.GameType,
		minGamesPlayed: cfg.MinGamesPlayed,
		sort:           cfg.Sort,
	}
}

// URL returns the request URL for the given season and zero-based page.
// The season range is encoded as start year followed by start year + 1.
func (p *Planner) URL(season, page int) string {
	span := fmt.Sprintf("%d%d", season, season+1)
	return fmt.Sprintf("%s?aggregate=0&reportType=game&seasonFrom=%s&seasonTo=%s&dateFromSeason"+
		"&gameType=%d&filter=gamesPlayed,gte,%d&sort=%s&page=%d&pageSize=%d",
		p.baseURL, span, span, p.gameType, p.minGamesPlayed, p.sort, page, p.pageSize)
}

// FirstURL returns the URL of page 0 of a season.
func (p *Planner) FirstURL(season int) string {
	return p.URL(season, 0)
}

// PageSize returns the number of rows requested per page.
func (p *Planner) PageSize() int {
	return p.pageSize
}

// TotalPages reads the total-page indicator from the rendered first page
// of a season. A missing or unparsable indicator, or a count below one,
// is a *types.PaginationError.
func TotalPages(season int, url, markup string) (int, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return 0, &types.PaginationError{Season: season, URL: url, Err: err}
	}

	node := htmlquery.FindOne(doc, totalPagesXPath)
	if node == nil {
		return 0, &types.PaginationError{Season: season, URL: url, Err: types.ErrMissingIndicator}
	}

	text := strings.TrimSpace(htmlquery.InnerText(node))
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &types.PaginationError{Season: season, URL: url, Err: fmt.Errorf("unparsable page count %q: %w", text, err)}
	}
	if n < 1 {
		return 0, &types.PaginationError{Season: season, URL: url, Err: fmt.Errorf("page count %d is below 1", n)}
	}
	return n, nil
}
