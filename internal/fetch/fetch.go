package fetch

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Renderer loads a URL in a headless engine and returns the fully rendered
// DOM serialization. Used only for stores whose pages need JavaScript.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Fetcher retrieves raw HTML for a URL. A false second return means the page
// could not be fetched; absence is the only failure signal, callers decide
// whether to skip or retry.
type Fetcher interface {
	Fetch(url string, jsRequired bool) (string, bool)
}

// userAgents is the pool of realistic agent strings rotated per request.
var userAgents = []string{
	"Mozilla/5.0 (X11; Linux ppc64le; rv:75.0) Gecko/20100101 Firefox/75.0",
	"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:39.0) Gecko/20100101 Firefox/75.0",
	"Mozilla/5.0 (Macintosh; U; Intel Mac OS X 10.10; rv:75.0) Gecko/20100101 Firefox/75.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_3) AppleWebKit/537.75.14 (KHTML, like Gecko) Version/7.0.3 Safari/7046A194A",
	"Opera/9.80 (X11; Linux i686; Ubuntu/14.10) Presto/2.12.388 Version/12.16",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0.3538.77 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2919.83 Safari/537.36",
	"Mozilla/5.0 (Linux; U; Android 4.0.3; ko-kr; LG-L160L Build/IML74K) AppleWebkit/534.30 (KHTML, like Gecko) Version/4.0 Mobile Safari/534.30",
}

// probeAgent is the fixed desktop agent used for reachability probes.
const probeAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/50.0.2661.102 Safari/537.36"

// Client fetches store pages over plain HTTP, delegating to a Renderer when
// a store needs JavaScript.
type Client struct {
	http     *http.Client
	renderer Renderer
}

// NewClient creates a page fetcher. renderer may be nil when no JS-rendering
// collaborator is available; JS fetches then fall back to plain HTTP.
func NewClient(renderer Renderer, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		renderer: renderer,
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch retrieves the HTML of a page. Any non-200 response or transport
// error yields absence; nothing is ever raised to the caller.
func (c *Client) Fetch(pageURL string, jsRequired bool) (string, bool) {
	if jsRequired && c.renderer != nil {
		log.WithField("url", pageURL).Info("getting HTML through a browser in order to use JS")
		html, err := c.renderer.Render(context.Background(), pageURL)
		if err != nil {
			log.WithField("url", pageURL).Warnf("render failed: %v", err)
			return "", false
		}
		return html, true
	}
	if jsRequired {
		log.WithField("url", pageURL).Warn("store needs JS but no renderer is configured, trying plain HTTP")
	}

	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		log.WithField("url", pageURL).Warnf("building request: %v", err)
		return "", false
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithField("url", pageURL).Warnf("fetch failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("url", pageURL).Warnf("could not get status 200, status was %d", resp.StatusCode)
		return "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithField("url", pageURL).Warnf("reading body: %v", err)
		return "", false
	}
	return string(body), true
}

// Probe issues a GET with a fixed desktop agent and reports the status code.
// Unlike Fetch it surfaces transport errors, which the compatibility checker
// converts into a not-scrapable verdict.
func (c *Client) Probe(pageURL string) (int, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", probeAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
