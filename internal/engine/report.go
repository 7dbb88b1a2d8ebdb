package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Stage names the step of the pipeline a failure happened in.
type Stage string

const (
	StageFetchFirstPage    Stage = "fetch_first_page"
	StageDiscoverPageCount Stage = "discover_page_count"
	StageFetchPage         Stage = "fetch_page"
	StageArchive           Stage = "archive"
	StageExtract           Stage = "extract"
	StagePersistRows       Stage = "persist_rows"
)

// SeasonLevel is the Page value of a failure that aborted a whole season.
const SeasonLevel = -1

// Failure records one abandoned season or page.
type Failure struct {
	Season    int    `json:"season"`
	Page      int    `json:"page"`
	Stage     Stage  `json:"stage"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Report summarizes an ingestion run.
type Report struct {
	StartSeason int       `json:"start_season"`
	EndSeason   int       `json:"end_season"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Interrupted bool      `json:"interrupted"`

	SeasonsAttempted int `json:"seasons_attempted"`
	SeasonsSucceeded int `json:"seasons_succeeded"`
	SeasonsFailed    int `json:"seasons_failed"`
	PagesAttempted   int `json:"pages_attempted"`
	PagesSucceeded   int `json:"pages_succeeded"`
	PagesFailed      int `json:"pages_failed"`
	RowsStored       int `json:"rows_stored"`

	Failures []Failure `json:"failures"`
}

func newReport(start, end int) *Report {
	return &Report{
		StartSeason: start,
		EndSeason:   end,
		StartedAt:   time.Now().UTC(),
		Failures:    []Failure{},
	}
}

func (r *Report) addFailure(season, page int, stage Stage, err error, retryable bool) {
	r.Failures = append(r.Failures, Failure{
		Season:    season,
		Page:      page,
		Stage:     stage,
		Error:     err.Error(),
		Retryable: retryable,
	})
}

// Failed reports whether anything in the run was abandoned.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0 || r.Interrupted
}

// FailedSeasons returns the seasons that were aborted as a whole.
func (r *Report) FailedSeasons() []int {
	var out []int
	for _, f := range r.Failures {
		if f.Page == SeasonLevel {
			out = append(out, f.Season)
		}
	}
	sort.Ints(out)
	return out
}

// Summary returns a one-line human-readable summary.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"seasons=%d/%d ok (%d failed) pages=%d/%d ok (%d failed) rows=%d",
		r.SeasonsSucceeded, r.SeasonsAttempted, r.SeasonsFailed,
		r.PagesSucceeded, r.PagesAttempted, r.PagesFailed,
		r.RowsStored,
	)
}

// SaveReport writes the report as JSON, atomically.
func SaveReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	// Write to temp file, then rename (atomic write)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename report file: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	var r Report
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
