package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/config"
)

// RodRenderer implements Renderer using a headless browser via Rod.
// One browser lives for the whole run; each Render opens its own tab.
type RodRenderer struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.RendererConfig
	logger   *slog.Logger
}

// NewRodRenderer launches a browser and connects to it.
func NewRodRenderer(cfg config.RendererConfig, logger *slog.Logger) (*RodRenderer, error) {
	rr := &RodRenderer{
		cfg:    cfg,
		logger: logger.With("component", "rod_renderer"),
	}

	launchURL, err := rr.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		rr.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	rr.browser = browser

	rr.logger.Info("browser renderer ready",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"render_timeout", cfg.RenderTimeout,
	)

	return rr, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (rr *RodRenderer) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(rr.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if rr.cfg.BinPath != "" {
		l = l.Bin(rr.cfg.BinPath)
	}

	rr.launcher = l
	return l.Launch()
}

// Render implements Renderer.
func (rr *RodRenderer) Render(ctx context.Context, url string) (string, error) {
	start := time.Now()

	page, err := rr.openPage()
	if err != nil {
		return "", fetchError(url, fmt.Errorf("open tab: %w", err))
	}
	defer func() {
		if err := page.Close(); err != nil {
			rr.logger.Warn("failed to close tab", "url", url, "error", err)
		}
	}()

	p := page.Context(ctx).Timeout(rr.cfg.RenderTimeout)
	defer p.CancelTimeout()

	if rr.cfg.UserAgent != "" {
		err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: rr.cfg.UserAgent})
		if err != nil {
			rr.logger.Warn("failed to set user agent", "error", err)
		}
	}

	if err := p.Navigate(url); err != nil {
		return "", fetchError(url, fmt.Errorf("navigate: %w", err))
	}

	// The table body is filled asynchronously after load, and the padding
	// rows exist before the data does. ElementR keeps polling until a cell
	// carries visible text; JS \s covers the &nbsp; padding.
	if _, err := p.ElementR(rr.cfg.WaitSelector, `\S`); err != nil {
		return "", fetchError(url, fmt.Errorf("wait for %q: %w", rr.cfg.WaitSelector, err))
	}

	if rr.cfg.Settle > 0 {
		if err := p.WaitStable(rr.cfg.Settle); err != nil {
			rr.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
		}
	}

	html, err := p.HTML()
	if err != nil {
		return "", fetchError(url, fmt.Errorf("capture html: %w", err))
	}

	rr.logger.Debug("render complete",
		"url", url,
		"size", len(html),
		"duration", time.Since(start),
	)

	return html, nil
}

// openPage creates a fresh tab, patched against bot detection when
// stealth is enabled.
func (rr *RodRenderer) openPage() (*rod.Page, error) {
	if rr.cfg.Stealth {
		return stealth.Page(rr.browser)
	}
	return rr.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// Close shuts down the browser.
func (rr *RodRenderer) Close() error {
	if rr.browser != nil {
		return rr.browser.Close()
	}
	return nil
}

// Type returns the backend identifier.
func (rr *RodRenderer) Type() string {
	return "rod"
}
