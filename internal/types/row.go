package types

import "time"

// Row is one team's single-game record from the team stats table.
// Numeric statistics are nil when the site renders its missing-value
// sentinel instead of a number; nil is never the same as zero.
type Row struct {
	// Season is the year the season starts in (2019 for 2019-2020).
	Season int

	// Page is the zero-based page index the row was extracted from.
	Page int

	Team string
	Game string

	GamesPlayed  *int
	Wins         *int
	Losses       *int
	Ties         *int
	OTLosses     *int
	Points       *int
	PointPercent *float64
	RegWins      *int
	RegOTWins    *int
	SOWins       *int
	GoalsFor     *int
	GoalsAgainst *int

	GoalsForPerGame     *float64
	GoalsAgainstPerGame *float64
	PowerPlayPercent    *float64
	PenaltyKillPercent  *float64
	PowerPlayNetPercent *float64
	PenaltyKillNetPct   *float64
	ShotsForPerGame     *float64
	ShotsAgainstPerGame *float64
	FaceoffWinPercent   *float64
}

// RenderedPage is the raw captured document for one (season, page).
// It is written once to the archive and never modified.
type RenderedPage struct {
	Season    int
	Page      int
	URL       string
	HTML      string
	FetchedAt time.Time
}

// NewRenderedPage wraps rendered markup for the given season and page.
func NewRenderedPage(season, page int, url, html string) *RenderedPage {
	return &RenderedPage{
		Season:    season,
		Page:      page,
		URL:       url,
		HTML:      html,
		FetchedAt: time.Now().UTC(),
	}
}

// Int returns a pointer to v. Used to build rows by hand, mostly in tests.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
