package marketplace

import (
	"context"
	"fmt"
	"marketplace-watcher/config"
	"marketplace-watcher/utils"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

const (
	// AnchorSelector marks the section right before the listing grid.
	AnchorSelector = "#seo_pivots"
	// OverlaySelector is the close button of the "log in to see more" prompt.
	OverlaySelector = "div[aria-label='Close']"
)

// countListingsJS mirrors listingContainer in parser.go.
const countListingsJS = `(() => {
	const anchor = document.querySelector('#seo_pivots');
	const section = anchor?.nextElementSibling?.nextElementSibling?.nextElementSibling;
	const grid = section?.children[0]?.children[1];
	return grid ? grid.querySelectorAll('a').length : 0;
})()`

const dismissOverlayJS = `(() => {
	const btn = document.querySelector("div[aria-label='Close']");
	if (!btn) return false;
	btn.click();
	return true;
})()`

const scrollToBottomJS = `window.scroll(0, document.body.scrollHeight + 50000)`

// ChromeBrowser drives a local Chrome through chromedp.
type ChromeBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	log           zerolog.Logger
}

// NewChromeBrowser starts Chrome. The browser lives until Close or until
// ctx is cancelled.
func NewChromeBrowser(ctx context.Context, cfg config.BrowserConfig, log zerolog.Logger) (*ChromeBrowser, error) {
	log = log.With().Str("component", "ChromeBrowser").Logger()
	log.Info().Bool("headless", cfg.Headless).Str("exec_path", cfg.ExecutablePath).Msg("Launching Chrome browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, utils.LaunchOpts(cfg.Headless, cfg.ExecutablePath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Info().Msg("Browser ready")
	return &ChromeBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       cfg.NavigationTimeout,
		log:           log,
	}, nil
}

func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: tabCancel, timeout: b.timeout}, nil
}

func (b *ChromeBrowser) Close() {
	b.log.Info().Msg("Closing browser")
	b.browserCancel()
	b.allocCancel()
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab bounded by the page timeout and by the
// caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return navigateAndWait(ctx, url,
		func(ctx context.Context) error {
			return p.run(ctx, chromedp.Navigate(url), utils.HideWebDriver())
		},
		func(ctx context.Context) error {
			return p.run(ctx, chromedp.WaitReady(AnchorSelector, chromedp.ByQuery))
		},
	)
}

// navigateAndWait loads the page, then waits for the listing anchor. Only a
// failed wait is reported as ErrAnchorMissing; load failures (DNS, refused,
// load timeout) keep their own cause.
func navigateAndWait(ctx context.Context, url string, load, waitAnchor func(context.Context) error) error {
	if err := load(ctx); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := waitAnchor(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAnchorMissing, url, err)
	}
	return nil
}

func (p *chromePage) DismissOverlay(ctx context.Context) error {
	var clicked bool
	return p.run(ctx, chromedp.Evaluate(dismissOverlayJS, &clicked))
}

func (p *chromePage) CountListings(ctx context.Context) (int, error) {
	var n int
	if err := p.run(ctx, chromedp.Evaluate(countListingsJS, &n)); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	if err := p.run(ctx, chromedp.Evaluate(scrollToBottomJS, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture document: %w", err)
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0644)
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
