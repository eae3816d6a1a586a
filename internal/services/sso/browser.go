// -----------------------------------------------------------------------
// Chrome login window
//
// Drives a real, headed Chrome window over the DevTools protocol. The
// window runs on a dedicated user-data-dir, which is the isolated
// browsing-session partition: SSO cookies never mix with the console's own
// network traffic.
// -----------------------------------------------------------------------

package sso

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// ChromeWindowFactory opens login windows backed by a local Chrome instance.
type ChromeWindowFactory struct {
	cfg    common.SSOAppConfig
	logger arbor.ILogger

	mu     sync.Mutex
	active *chromeWindow
}

// NewChromeWindowFactory creates the factory. One window at most exists at a
// time; the orchestrator enforces that, the factory only tracks the current
// one for partition clearing.
func NewChromeWindowFactory(cfg common.SSOAppConfig, logger arbor.ILogger) *ChromeWindowFactory {
	return &ChromeWindowFactory{
		cfg:    cfg,
		logger: logger,
	}
}

var _ interfaces.WindowFactory = (*ChromeWindowFactory)(nil)

// chromeWindow is a single headed Chrome window bound to the SSO partition.
type chromeWindow struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      arbor.ILogger

	mu      sync.Mutex
	lastURL string
	closed  bool
}

// Open launches Chrome on the partition directory and wires the navigation
// handlers. Hidden windows are positioned offscreen until Show is called;
// Chrome has no true hidden headed mode.
func (f *ChromeWindowFactory) Open(ctx context.Context, hidden bool, handlers interfaces.WindowEventHandlers) (interfaces.LoginWindow, error) {
	if err := os.MkdirAll(f.cfg.PartitionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create partition directory: %w", err)
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.UserDataDir(f.cfg.PartitionDir),
		chromedp.WindowSize(800, 700),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if hidden {
		opts = append(opts, chromedp.Flag("window-position", "-32000,-32000"))
	}
	if f.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ChromePath))
	}
	if f.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	// Parent on Background: the window's lifetime is governed by Close and
	// by the user, not by the HTTP request that triggered the login.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	w := &chromeWindow{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		logger:      f.logger,
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameRequestedNavigation:
			// Pre-navigation signal: a redirect is about to be followed.
			if handlers.OnNavigation != nil {
				handlers.OnNavigation(interfaces.NavigationEvent{
					Kind: interfaces.NavigationWillRedirect,
					URL:  e.URL,
				})
			}
		case *page.EventFrameNavigated:
			// Post-navigation signal, main frame only. Client-side
			// redirects arrive here and nowhere else.
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			w.setLastURL(e.Frame.URL)
			if handlers.OnNavigation != nil {
				handlers.OnNavigation(interfaces.NavigationEvent{
					Kind: interfaces.NavigationDidNavigate,
					URL:  e.Frame.URL,
				})
			}
		case *page.EventLoadEventFired:
			if handlers.OnPageLoad != nil {
				handlers.OnPageLoad(w.getLastURL())
			}
		}
	})

	// Start the browser and enable the domains the listener needs.
	if err := chromedp.Run(browserCtx, page.Enable(), network.Enable()); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start login browser: %w", err)
	}

	// The browser context ends when the user closes the window, when Chrome
	// dies, or when Close is called. All three surface as OnClosed.
	go func() {
		<-browserCtx.Done()
		f.release(w)
		if handlers.OnClosed != nil {
			handlers.OnClosed()
		}
	}()

	f.mu.Lock()
	f.active = w
	f.mu.Unlock()

	f.logger.Debug().
		Str("partition_dir", f.cfg.PartitionDir).
		Bool("hidden", hidden).
		Msg("Login window opened")

	return w, nil
}

// ClearPartition wipes the partition's stored cookies. With a window open the
// wipe goes through the DevTools protocol; otherwise the partition directory
// is removed from disk.
func (f *ChromeWindowFactory) ClearPartition(ctx context.Context) error {
	f.mu.Lock()
	active := f.active
	f.mu.Unlock()

	if active != nil {
		if err := chromedp.Run(active.ctx, network.ClearBrowserCookies()); err != nil {
			return fmt.Errorf("failed to clear partition cookies: %w", err)
		}
		f.logger.Info().Msg("Cleared login partition cookies")
		return nil
	}

	if err := os.RemoveAll(f.cfg.PartitionDir); err != nil {
		return fmt.Errorf("failed to remove partition directory: %w", err)
	}
	f.logger.Info().Str("partition_dir", f.cfg.PartitionDir).Msg("Removed login partition")
	return nil
}

func (f *ChromeWindowFactory) release(w *chromeWindow) {
	f.mu.Lock()
	if f.active == w {
		f.active = nil
	}
	f.mu.Unlock()
}

// Navigate drives the window to the given URL.
func (w *chromeWindow) Navigate(ctx context.Context, url string) error {
	w.setLastURL(url)
	if err := chromedp.Run(w.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Evaluate runs a script in the page context.
func (w *chromeWindow) Evaluate(ctx context.Context, script string) error {
	if err := chromedp.Run(w.ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// Show moves an offscreen window into view and raises it.
func (w *chromeWindow) Show(ctx context.Context) error {
	err := chromedp.Run(w.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		bounds := &browser.Bounds{
			Left:        100,
			Top:         100,
			Width:       800,
			Height:      700,
			WindowState: browser.WindowStateNormal,
		}
		if err := browser.SetWindowBounds(windowID, bounds).Do(ctx); err != nil {
			return err
		}
		return page.BringToFront().Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to reveal window: %w", err)
	}
	return nil
}

// Focus raises the window.
func (w *chromeWindow) Focus(ctx context.Context) error {
	if err := chromedp.Run(w.ctx, page.BringToFront()); err != nil {
		return fmt.Errorf("failed to focus window: %w", err)
	}
	return nil
}

// Cookies reads all cookies stored in the partition.
func (w *chromeWindow) Cookies(ctx context.Context) ([]models.BrowserCookie, error) {
	var cookies []models.BrowserCookie
	err := chromedp.Run(w.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]models.BrowserCookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, models.BrowserCookie{Name: c.Name, Value: c.Value})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read partition cookies: %w", err)
	}
	return cookies, nil
}

// Close tears the window down. Idempotent.
func (w *chromeWindow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancelCtx()
	w.cancelAlloc()
}

func (w *chromeWindow) setLastURL(url string) {
	w.mu.Lock()
	w.lastURL = url
	w.mu.Unlock()
}

func (w *chromeWindow) getLastURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastURL
}
