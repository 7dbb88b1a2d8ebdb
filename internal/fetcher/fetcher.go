package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// Renderer fetches fully rendered markup through a browser.
type Renderer interface {
	// Render navigates to url, waits until client-side rendering has
	// populated the table, and returns the page markup. The browser tab is
	// released before Render returns, on every path. Failures are
	// *types.FetchError values; Render never retries.
	Render(ctx context.Context, url string) (string, error)

	// Close releases the browser.
	Close() error

	// Type returns the backend identifier.
	Type() string
}

// New creates the renderer selected by cfg.Backend.
func New(cfg config.RendererConfig, logger *slog.Logger) (Renderer, error) {
	switch cfg.Backend {
	case "rod":
		return NewRodRenderer(cfg, logger)
	case "chromedp":
		return NewChromeDPRenderer(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", cfg.Backend)
	}
}

// populatedScript evaluates to true once an element matching selector holds
// visible text. The padding rows rendered before the data arrives hold only
// &nbsp;, which String.trim removes.
func populatedScript(selector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).some(el => el.textContent.trim() !== "")`,
		strconv.Quote(selector))
}

// fetchError classifies a browser failure. Cancellation of the run is not
// retryable; everything else (navigation, render wait, timeout) is.
func fetchError(url string, err error) *types.FetchError {
	switch {
	case errors.Is(err, context.Canceled):
		return &types.FetchError{URL: url, Err: err, Retryable: false}
	case errors.Is(err, context.DeadlineExceeded):
		return &types.FetchError{URL: url, Err: fmt.Errorf("%w: %v", types.ErrTimeout, err), Retryable: true}
	default:
		return &types.FetchError{URL: url, Err: err, Retryable: true}
	}
}
