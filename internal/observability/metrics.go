package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks operational metrics for an ingestion run.
type Metrics struct {
	PagesRendered  prometheus.Counter
	RenderFailures prometheus.Counter
	RenderRetries  prometheus.Counter
	PagesArchived  prometheus.Counter
	PagesFailed    *prometheus.CounterVec
	RowsExtracted  prometheus.Counter
	RowsStored     prometheus.Counter
	SeasonsDone    *prometheus.CounterVec
	RenderSeconds  prometheus.Histogram

	registry *prometheus.Registry
	server   *http.Server
	logger   *slog.Logger
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		PagesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nhlstats_pages_rendered_total",
			Help: "Pages rendered by the browser",
		}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nhlstats_render_failures_total",
			Help: "Render attempts that failed",
		}),
		RenderRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nhlstats_render_retries_total",
			Help: "Render attempts repeated after a retryable failure",
		}),
		PagesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nhlstats_pages_archived_total",
			Help: "Rendered pages written to the archive",
		}),
		PagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nhlstats_pages_failed_total",
			Help: "Pages abandoned, by failing stage",
		}, []string{"stage"}),
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nhlstats_rows_extracted_total",
			Help: "Rows extracted from rendered pages",
		}),
		RowsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nhlstats_rows_stored_total",
			Help: "Rows appended to the structured store",
		}),
		SeasonsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nhlstats_seasons_total",
			Help: "Seasons finished, by outcome",
		}, []string{"outcome"}),
		RenderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nhlstats_render_duration_seconds",
			Help:    "Time spent rendering one page",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		}),
		registry: prometheus.NewRegistry(),
		logger:   logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.PagesRendered, m.RenderFailures, m.RenderRetries, m.PagesArchived,
		m.PagesFailed, m.RowsExtracted, m.RowsStored, m.SeasonsDone, m.RenderSeconds,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartServer serves the registry on the given port and path.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{Addr: addr, Handler: mux}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Close stops the metrics server if it was started.
func (m *Metrics) Close() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}
