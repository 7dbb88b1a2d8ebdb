package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/fetcher"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/observability"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/parser"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/planner"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/storage"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// State represents the orchestrator's position in the ingestion cycle.
type State int32

const (
	StateIdle              State = 0
	StateSeasonStart       State = 1
	StateFetchFirstPage    State = 2
	StateDiscoverPageCount State = 3
	StateFetchPage         State = 4
	StateArchiveAndExtract State = 5
	StatePersistRows       State = 6
	StateSeasonDone        State = 7
	StateAllSeasonsDone    State = 8
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeasonStart:
		return "season_start"
	case StateFetchFirstPage:
		return "fetch_first_page"
	case StateDiscoverPageCount:
		return "discover_page_count"
	case StateFetchPage:
		return "fetch_page"
	case StateArchiveAndExtract:
		return "archive_and_extract"
	case StatePersistRows:
		return "persist_rows"
	case StateSeasonDone:
		return "season_done"
	case StateAllSeasonsDone:
		return "all_seasons_done"
	default:
		return "unknown"
	}
}

// Engine walks seasons and pages sequentially, feeding each rendered page to
// the archive and the extracted rows to the structured store.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	planner   *planner.Planner
	renderer  fetcher.Renderer
	extractor parser.Extractor
	archive   storage.ArchiveSink
	rows      storage.RowSink
	metrics   *observability.Metrics
	pacer     *pacer

	state   atomic.Int32
	running atomic.Bool
	mu      sync.RWMutex
}

// New creates an Engine. A renderer and both sinks must be set before Run.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		planner:   planner.New(cfg.Source),
		extractor: parser.NewTableExtractor(parser.TeamGameSchema, logger),
		metrics:   observability.NewMetrics(logger),
		pacer:     newPacer(cfg.Engine.RequestDelay),
	}
}

// SetRenderer sets the page renderer. The engine closes it when a run ends.
func (e *Engine) SetRenderer(r fetcher.Renderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderer = r
}

// SetArchive sets the raw page archive.
func (e *Engine) SetArchive(a storage.ArchiveSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.archive = a
}

// SetRowSink sets the structured row store.
func (e *Engine) SetRowSink(s storage.RowSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = s
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// GetState returns the current orchestrator state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Run ingests every season in [start, end]. Failures are isolated to the page
// or season they occur in and collected in the returned report; the error is
// non-nil only when the run could not start at all. The renderer and both
// sinks are closed before Run returns, unless another run already owns them.
func (e *Engine) Run(ctx context.Context, start, end int) (*Report, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.finish()

	if err := config.ValidateSeasons(start, end); err != nil {
		return nil, err
	}

	report := newReport(start, end)
	e.logger.Info("ingestion starting",
		"start_season", start,
		"end_season", end,
		"delay", e.cfg.Engine.RequestDelay,
		"renderer", e.renderer.Type(),
		"archive", e.archive.Name(),
		"rows", e.rows.Name(),
	)

	for season := start; season <= end; season++ {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		e.runSeason(ctx, season, nil, report)
	}

	return e.complete(report), nil
}

// Rerun repeats the failed units of a previous report. Season-level failures
// rerun the whole season; page-level failures rerun only those pages.
func (e *Engine) Rerun(ctx context.Context, failures []Failure) (*Report, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.finish()

	if len(failures) == 0 {
		return nil, errors.New("nothing to rerun")
	}

	plan := make(map[int][]int)
	for _, f := range failures {
		pages, seen := plan[f.Season]
		switch {
		case f.Page == SeasonLevel:
			plan[f.Season] = nil
		case seen && pages == nil:
			// whole season already scheduled
		default:
			plan[f.Season] = append(pages, f.Page)
		}
	}

	seasons := make([]int, 0, len(plan))
	for s := range plan {
		seasons = append(seasons, s)
	}
	sort.Ints(seasons)

	report := newReport(seasons[0], seasons[len(seasons)-1])
	e.logger.Info("rerun starting", "seasons", seasons, "failures", len(failures))

	for _, season := range seasons {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		pages := plan[season]
		if pages != nil {
			sort.Ints(pages)
			pages = slices.Compact(pages)
		}
		e.runSeason(ctx, season, pages, report)
	}

	return e.complete(report), nil
}

// begin marks the engine running. A second concurrent run is refused without
// touching the components the first one owns; a run missing a component
// releases the ones it was given.
func (e *Engine) begin() error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine is in state %s, cannot start", e.GetState())
	}

	e.mu.RLock()
	complete := e.renderer != nil && e.archive != nil && e.rows != nil
	e.mu.RUnlock()
	if !complete {
		e.finish()
		return errors.New("engine requires a renderer, an archive sink and a row sink")
	}
	return nil
}

// finish releases the renderer and both sinks.
func (e *Engine) finish() {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.renderer != nil {
		if err := e.renderer.Close(); err != nil {
			e.logger.Error("renderer close error", "error", err)
		}
	}
	if e.archive != nil {
		if err := e.archive.Close(); err != nil {
			e.logger.Error("archive close error", "error", err)
		}
	}
	if e.rows != nil {
		if err := e.rows.Close(); err != nil {
			e.logger.Error("row sink close error", "error", err)
		}
	}
	e.running.Store(false)
}

func (e *Engine) complete(report *Report) *Report {
	e.setState(StateAllSeasonsDone)
	report.FinishedAt = time.Now().UTC()

	attrs := []any{
		"seasons_attempted", report.SeasonsAttempted,
		"seasons_succeeded", report.SeasonsSucceeded,
		"seasons_failed", report.SeasonsFailed,
		"pages_attempted", report.PagesAttempted,
		"pages_succeeded", report.PagesSucceeded,
		"pages_failed", report.PagesFailed,
		"rows_stored", report.RowsStored,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
	}
	if report.Failed() {
		e.logger.Warn("ingestion finished with failures", append(attrs, "interrupted", report.Interrupted)...)
	} else {
		e.logger.Info("ingestion finished", attrs...)
	}

	if path := e.cfg.Engine.ReportPath; path != "" {
		if err := SaveReport(path, report); err != nil {
			e.logger.Error("report save failed", "path", path, "error", err)
		} else {
			e.logger.Info("report saved", "path", path)
		}
	}
	return report
}

// runSeason ingests one season. When only is non-nil, pages not listed in it
// are skipped once the page count is known.
func (e *Engine) runSeason(ctx context.Context, season int, only []int, report *Report) {
	log := e.logger.With("season", season)
	e.setState(StateSeasonStart)
	report.SeasonsAttempted++

	e.setState(StateFetchFirstPage)
	firstURL := e.planner.FirstURL(season)
	first, err := e.render(ctx, firstURL)
	if err != nil {
		e.failSeason(log, report, season, StageFetchFirstPage, err)
		return
	}

	e.setState(StateDiscoverPageCount)
	total, err := planner.TotalPages(season, firstURL, first)
	if err != nil {
		e.failSeason(log, report, season, StageDiscoverPageCount, err)
		return
	}
	log.Info("season discovered", "pages", total)

	pages := only
	if pages == nil {
		pages = make([]int, total)
		for i := range pages {
			pages[i] = i
		}
	}

	failedBefore := report.PagesFailed
	for _, page := range pages {
		if page < 0 || page >= total {
			log.Warn("page out of range, skipping", "page", page, "pages", total)
			continue
		}
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		report.PagesAttempted++
		url := e.planner.URL(season, page)
		markup := first
		if page > 0 {
			e.setState(StateFetchPage)
			markup, err = e.render(ctx, url)
			if err != nil {
				e.failPage(log, report, season, page, StageFetchPage, err)
				continue
			}
		}

		stored, stage, err := e.processPage(ctx, season, page, total, url, markup)
		if err != nil {
			e.failPage(log, report, season, page, stage, err)
			continue
		}
		report.PagesSucceeded++
		report.RowsStored += stored
		log.Info("page ingested", "page", page, "of", total, "rows", stored)
	}

	e.setState(StateSeasonDone)
	if report.PagesFailed > failedBefore || report.Interrupted {
		report.SeasonsFailed++
		e.metrics.SeasonsDone.WithLabelValues("failed").Inc()
		log.Warn("season finished with failures", "failed_pages", report.PagesFailed-failedBefore)
		return
	}
	report.SeasonsSucceeded++
	e.metrics.SeasonsDone.WithLabelValues("succeeded").Inc()
	log.Info("season done")
}

// processPage archives the raw markup, then extracts and appends its rows.
// The archive write always precedes extraction, so a page that fails to
// parse is still kept in raw form. Only the last page of a season may be
// short; any earlier page without rows is a capture taken before the table
// loaded and fails.
func (e *Engine) processPage(ctx context.Context, season, page, total int, url, markup string) (int, Stage, error) {
	e.setState(StateArchiveAndExtract)
	doc := types.NewRenderedPage(season, page, url, markup)
	if err := e.archive.Insert(ctx, doc); err != nil {
		if !errors.Is(err, types.ErrAlreadyArchived) {
			return 0, StageArchive, err
		}
		e.logger.Info("page already archived", "season", season, "page", page)
	} else {
		e.metrics.PagesArchived.Inc()
	}

	rows, err := e.extractor.Extract(markup, season, page)
	if err != nil {
		return 0, StageExtract, err
	}
	if len(rows) == 0 && page < total-1 {
		return 0, StageExtract, &types.ParseError{Season: season, Page: page, Row: 0, Err: types.ErrEmptyPage}
	}
	e.metrics.RowsExtracted.Add(float64(len(rows)))

	e.setState(StatePersistRows)
	if err := e.rows.Append(ctx, rows); err != nil {
		return 0, StagePersistRows, err
	}
	e.metrics.RowsStored.Add(float64(len(rows)))
	return len(rows), "", nil
}

// render waits out the request delay since the previous render ended, then
// renders url. Retryable failures are repeated up to Engine.MaxRetries times.
func (e *Engine) render(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.Engine.MaxRetries; attempt++ {
		if attempt > 0 {
			e.metrics.RenderRetries.Inc()
			e.logger.Warn("retrying render", "url", url, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(e.cfg.Engine.RetryDelay):
			}
		}

		if err := e.pacer.wait(ctx); err != nil {
			return "", err
		}

		start := time.Now()
		markup, err := e.renderer.Render(ctx, url)
		e.pacer.done()
		e.metrics.RenderSeconds.Observe(time.Since(start).Seconds())
		if err == nil {
			e.metrics.PagesRendered.Inc()
			return markup, nil
		}

		e.metrics.RenderFailures.Inc()
		lastErr = err
		if !types.IsRetryable(err) {
			break
		}
	}
	return "", lastErr
}

func (e *Engine) failSeason(log *slog.Logger, report *Report, season int, stage Stage, err error) {
	report.SeasonsFailed++
	report.addFailure(season, SeasonLevel, stage, err, types.IsRetryable(err))
	e.metrics.SeasonsDone.WithLabelValues("failed").Inc()
	e.setState(StateSeasonDone)
	log.Error("season aborted", "stage", stage, "error", err)
}

func (e *Engine) failPage(log *slog.Logger, report *Report, season, page int, stage Stage, err error) {
	report.PagesFailed++
	report.addFailure(season, page, stage, err, types.IsRetryable(err))
	e.metrics.PagesFailed.WithLabelValues(string(stage)).Inc()
	log.Error("page aborted", "page", page, "stage", stage, "error", err)
}
