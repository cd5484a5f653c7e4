// Package render drives a headless Chrome to get the live feed's markup.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jdholdren/juicer/internal/juicer"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

	// Hides the automation flag from the page's scripts.
	hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

	consentButton = `//button[contains(normalize-space(.), "Accept all")]`
	feedSelector  = "#mainFeed"
	itemSelector  = ".headline-item"

	feedArtifact       = "debug_feed.html"
	screenshotArtifact = "error_screenshot.png"
)

type Config struct {
	Headless  bool
	NoSandbox bool

	NavigationTimeout time.Duration
	ConsentTimeout    time.Duration
	FeedTimeout       time.Duration

	ConsentSettle     juicer.Jitter
	PostConsentSettle juicer.Jitter
	FeedSettle        juicer.Jitter

	// Where debug artifacts get written. Empty turns them off.
	DebugDir string
}

// DefaultConfig gives the waits that have proven to get past the consent
// dialog and a slow feed.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NavigationTimeout: 90 * time.Second,
		ConsentTimeout:    5 * time.Second,
		FeedTimeout:       60 * time.Second,
		ConsentSettle:     juicer.Jitter{Min: 3 * time.Second, Max: 5 * time.Second},
		PostConsentSettle: juicer.Jitter{Min: 2 * time.Second, Max: 3 * time.Second},
		FeedSettle:        juicer.Jitter{Min: 5 * time.Second, Max: 8 * time.Second},
	}
}

// Validate checks the waits make sense.
func (c Config) Validate() error {
	for _, j := range []juicer.Jitter{c.ConsentSettle, c.PostConsentSettle, c.FeedSettle} {
		if err := j.Validate(); err != nil {
			return err
		}
	}
	if c.NavigationTimeout <= 0 || c.ConsentTimeout <= 0 || c.FeedTimeout <= 0 {
		return fmt.Errorf("%w: render timeouts must be positive", juicer.ErrConfig)
	}

	return nil
}

// Renderer starts a fresh browser for every render.
type Renderer struct {
	cfg Config
}

func New(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render loads url and returns the inner markup of the feed container once
// headlines are showing.
//
// The browser is torn down before returning, no matter how it went.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// The first run starts the browser, so it has to happen on the context
	// that owns it and not on one with a timeout.
	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	})); err != nil {
		return "", renderErr(ctx, "starting browser", err)
	}

	markup, err := r.render(browserCtx, url)
	if err != nil {
		r.screenshot(browserCtx)
		return "", err
	}

	r.writeArtifact(ctx, feedArtifact, []byte(markup))
	return markup, nil
}

func (r *Renderer) render(ctx context.Context, url string) (string, error) {
	if err := r.navigate(ctx, url); err != nil {
		return "", err
	}

	if err := juicer.Sleep(ctx, r.cfg.ConsentSettle.Duration()); err != nil {
		return "", renderErr(ctx, "settling before consent", err)
	}
	if err := r.acceptConsent(ctx); err != nil {
		return "", err
	}

	if err := r.waitForFeed(ctx); err != nil {
		return "", err
	}

	if err := juicer.Sleep(ctx, r.cfg.FeedSettle.Duration()); err != nil {
		return "", renderErr(ctx, "settling feed", err)
	}

	var markup string
	if err := chromedp.Run(ctx, chromedp.InnerHTML(feedSelector, &markup, chromedp.ByQuery)); err != nil {
		return "", renderErr(ctx, "reading feed markup", err)
	}

	return markup, nil
}

// Navigates and waits for the document to be parsed, not for the load event:
// the feed keeps connections open that can hold it back for good.
func (r *Renderer) navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()

	var (
		mu        sync.Mutex
		responses = map[cdp.FrameID]*network.Response{}
	)
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			mu.Lock()
			responses[e.FrameID] = e.Response
			mu.Unlock()
		}
	})

	slog.DebugContext(ctx, "navigating", "url", url)
	var nav page.NavigateReturns
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &nav)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", juicer.ErrNavigationFailed, url, err)
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("%w: %s: %s", juicer.ErrNavigationFailed, url, nav.ErrorText)
	}

	if err := chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: %s: waiting for document: %w", juicer.ErrNavigationFailed, url, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return checkResponse(url, responses[nav.FrameID])
}

// Reports error statuses as failed navigations. A nil response means the
// navigation didn't go over the network and is treated as fine.
func checkResponse(url string, resp *network.Response) error {
	if resp == nil {
		return nil
	}
	if resp.Status >= 400 {
		return fmt.Errorf("%w: %s: status %d", juicer.ErrNavigationFailed, url, resp.Status)
	}

	return nil
}

// Clicks away the cookie dialog if it shows up. Not finding it is fine.
func (r *Renderer) acceptConsent(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.ConsentTimeout)
	defer cancel()

	err := chromedp.Run(waitCtx,
		chromedp.WaitVisible(consentButton, chromedp.BySearch),
		chromedp.Click(consentButton, chromedp.BySearch, chromedp.NodeVisible),
	)
	if err != nil {
		if ctx.Err() != nil {
			return renderErr(ctx, "waiting for consent dialog", err)
		}
		slog.DebugContext(ctx, "no consent dialog", "error", err)
		return nil
	}

	slog.DebugContext(ctx, "accepted consent dialog")
	if err := juicer.Sleep(ctx, r.cfg.PostConsentSettle.Duration()); err != nil {
		return renderErr(ctx, "settling after consent", err)
	}

	return nil
}

func (r *Renderer) waitForFeed(ctx context.Context) error {
	wait := func(sel string, action func(any, ...chromedp.QueryOption) chromedp.QueryAction) error {
		waitCtx, cancel := context.WithTimeout(ctx, r.cfg.FeedTimeout)
		defer cancel()

		if err := chromedp.Run(waitCtx, action(sel, chromedp.ByQuery)); err != nil {
			return feedErr(ctx, sel, err)
		}
		return nil
	}

	if err := wait(feedSelector, chromedp.WaitReady); err != nil {
		return err
	}
	return wait(itemSelector, chromedp.WaitVisible)
}

func feedErr(ctx context.Context, sel string, err error) error {
	if ctx.Err() != nil {
		return renderErr(ctx, "waiting for "+sel, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out waiting for %s", juicer.ErrFeedNotReady, sel)
	}

	return fmt.Errorf("%w: waiting for %s: %s", juicer.ErrFeedNotReady, sel, err)
}

// Every failure of a render matches [juicer.ErrRender]. When the context
// ended, its error is kept as well so cancellation can still be told apart.
func renderErr(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", juicer.ErrRender, what, ctxErr)
	}

	return fmt.Errorf("%w: %s: %s", juicer.ErrRender, what, err)
}

func (r *Renderer) screenshot(ctx context.Context) {
	if r.cfg.DebugDir == "" || ctx.Err() != nil {
		return
	}

	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		slog.WarnContext(ctx, "error capturing screenshot", "error", err)
		return
	}

	r.writeArtifact(ctx, screenshotArtifact, buf)
}

func (r *Renderer) writeArtifact(ctx context.Context, name string, b []byte) {
	if r.cfg.DebugDir == "" {
		return
	}

	path := filepath.Join(r.cfg.DebugDir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		slog.WarnContext(ctx, "error writing debug artifact", "path", path, "error", err)
		return
	}

	slog.DebugContext(ctx, "wrote debug artifact", "path", path)
}
