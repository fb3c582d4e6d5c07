// Package render drives a headless Chrome through Rod to serialize the DOM
// of pages that only materialize their content via JavaScript.
package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Browser renders pages in a lazily launched headless Chrome. Safe for use
// from multiple workers; every Render call gets its own tab.
type Browser struct {
	remoteURL string
	timeout   time.Duration

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// New creates a Browser. remoteURL may point at an external Chrome's
// WebSocket endpoint; empty means launch a local headless Chrome on first
// use.
func New(remoteURL string, timeout time.Duration) *Browser {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Browser{remoteURL: remoteURL, timeout: timeout}
}

// Render loads a URL and returns the fully rendered DOM as HTML.
func (b *Browser) Render(ctx context.Context, pageURL string) (string, error) {
	browser, err := b.connect()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("render: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("render: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return "", fmt.Errorf("render: wait load %s: %w", pageURL, err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("render: serialize DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close shuts down the browser if one was launched.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.remoteURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("render: launch chrome: %w", err)
		}
		b.lnch = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect: %w", err)
	}
	b.browser = browser
	return browser, nil
}
