// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultWaitTimeout is how long a lookup waits for the coordinates to show
// up in the page location.
const DefaultWaitTimeout = 10 * time.Second

// Navigator loads pages in a browser.
type Navigator interface {
	// Resolve loads pageURL and returns the page location as soon as it
	// contains marker. It gives up after wait.
	Resolve(ctx context.Context, pageURL, marker string, wait time.Duration) (string, error)
}

// MapsGeocoder geocodes by loading the Google Maps search page and reading the
// coordinates from the URL the page settles on.
type MapsGeocoder struct {
	Navigator   Navigator
	BaseURL     string
	WaitTimeout time.Duration
}

// Geocode implements Geocoder.
func (g *MapsGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	wait := g.WaitTimeout
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}

	location, err := g.Navigator.Resolve(ctx, SearchURL(g.BaseURL, address), "@", wait)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var geoErr *GeocodingError
		if errors.As(err, &geoErr) {
			return nil, err
		}

		return nil, &GeocodingError{
			Type:    ErrorTypeNetworkError,
			Message: "navigating to map search",
			Err:     err,
		}
	}

	p, err := ParseMapsURL(location)
	if err != nil {
		return nil, err
	}

	// A single match lands on /maps/place/; ambiguous queries stay on the
	// search page centered on the result list.
	confidence := "low"
	if strings.Contains(location, "/maps/place/") {
		confidence = "high"
	}

	return &Result{
		Point:      p,
		Confidence: confidence,
		Provider:   ProviderBrowser,
		URL:        location,
	}, nil
}

// ChromeOptions configures the browser driven by ChromeNavigator.
type ChromeOptions struct {
	// ExecPath of a Chromium based browser (Chrome, Chromium, Edge). Empty
	// means auto-detection.
	ExecPath string

	Headless          bool
	UserAgent         string
	Language          string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	PollInterval      time.Duration
}

// ChromeNavigator drives a single browser tab through the Chrome DevTools
// protocol. The tab is reused across lookups and calls are serialized. A
// browser that died is started again on the next call.
type ChromeNavigator struct {
	mu            sync.Mutex
	tabCtx        context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	allocOpts     []chromedp.ExecAllocatorOption
	opts          ChromeOptions
	logger        *zap.Logger
}

// NewChromeNavigator starts the browser. It fails right away when no browser
// can be launched.
func NewChromeNavigator(opts ChromeOptions, logger *zap.Logger) (*ChromeNavigator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	if opts.Language != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Language))
	}

	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}

	n := &ChromeNavigator{allocOpts: allocOpts, opts: opts, logger: logger}
	if err := n.start(); err != nil {
		return nil, err
	}

	logger.Info("browser session started",
		zap.Bool("headless", opts.Headless),
		zap.String("exec_path", opts.ExecPath))

	return n, nil
}

// start launches a browser and opens the tab. Callers hold mu, except
// during construction.
func (n *ChromeNavigator) start() error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), n.allocOpts...)

	sugar := n.logger.Sugar()
	tabCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The first Run allocates the browser and ties it to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		browserCancel()
		allocCancel()

		return eris.Wrap(err, "starting browser")
	}

	n.tabCtx, n.allocCancel, n.browserCancel = tabCtx, allocCancel, browserCancel

	return nil
}

// alive reports whether the browser session can still run actions.
func (n *ChromeNavigator) alive() bool {
	return n.tabCtx != nil && n.tabCtx.Err() == nil
}

func (n *ChromeNavigator) restart() error {
	if n.browserCancel != nil {
		n.browserCancel()
		n.allocCancel()
	}

	n.logger.Warn("browser session lost, starting a new one")

	if err := n.start(); err != nil {
		n.tabCtx = nil

		return &GeocodingError{Type: ErrorTypeNetworkError, Message: "restarting browser", Err: err}
	}

	return nil
}

// Resolve implements Navigator.
func (n *ChromeNavigator) Resolve(ctx context.Context, pageURL, marker string, wait time.Duration) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.alive() {
		if err := n.restart(); err != nil {
			return "", err
		}
	}

	// Deriving from tabCtx keeps the tab alive when a single call times out.
	runCtx, cancel := context.WithTimeout(n.tabCtx, n.opts.NavigationTimeout+wait)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	expr := "window.location.href.includes(" + strconv.Quote(marker) + ") ? window.location.href : false"

	var location string

	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Poll(expr, &location,
			chromedp.WithPollingInterval(n.opts.PollInterval),
			chromedp.WithPollingTimeout(wait),
		),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		// The browser or the tab went away under a live caller.
		if !n.alive() {
			return "", &GeocodingError{Type: ErrorTypeNetworkError, Message: "browser session lost", Err: err}
		}

		if errors.Is(err, chromedp.ErrPollingTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return "", &GeocodingError{
				Type:    ErrorTypeTimeout,
				Message: "waiting for " + strconv.Quote(marker) + " in page location",
				Err:     err,
			}
		}

		return "", eris.Wrapf(err, "loading %s", pageURL)
	}

	return location, nil
}

// Close shuts the browser down.
func (n *ChromeNavigator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.tabCtx == nil {
		return nil
	}

	err := chromedp.Cancel(n.tabCtx)
	n.browserCancel()
	n.allocCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		return eris.Wrap(err, "closing browser")
	}

	return nil
}
