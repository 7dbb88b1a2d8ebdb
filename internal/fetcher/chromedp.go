package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
)

// ChromeDPRenderer implements Renderer on top of chromedp.
type ChromeDPRenderer struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cfg           config.RendererConfig
	logger        *slog.Logger
}

// NewChromeDPRenderer starts a browser through chromedp's exec allocator.
func NewChromeDPRenderer(cfg config.RendererConfig, logger *slog.Logger) (*ChromeDPRenderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.BinPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BinPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run on a fresh context starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	cr := &ChromeDPRenderer{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cfg:           cfg,
		logger:        logger.With("component", "chromedp_renderer"),
	}
	cr.logger.Info("browser renderer ready", "headless", cfg.Headless, "render_timeout", cfg.RenderTimeout)
	return cr, nil
}

// Render implements Renderer.
func (cr *ChromeDPRenderer) Render(ctx context.Context, url string) (string, error) {
	start := time.Now()

	tabCtx, cancelTab := chromedp.NewContext(cr.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, cr.cfg.RenderTimeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var populated bool
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitVisible(cr.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Poll(populatedScript(cr.cfg.WaitSelector), &populated,
			chromedp.WithPollingInterval(100*time.Millisecond),
			chromedp.WithPollingTimeout(0)),
	}
	if cr.cfg.Settle > 0 {
		actions = append(actions, chromedp.Sleep(cr.cfg.Settle))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return "", fetchError(url, err)
	}

	cr.logger.Debug("render complete", "url", url, "size", len(html), "duration", time.Since(start))
	return html, nil
}

// Close shuts down the browser and its allocator.
func (cr *ChromeDPRenderer) Close() error {
	cr.cancelBrowser()
	cr.cancelAlloc()
	return nil
}

// Type returns the backend identifier.
func (cr *ChromeDPRenderer) Type() string {
	return "chromedp"
}
