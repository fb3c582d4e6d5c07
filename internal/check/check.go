// Package check validates that a store profile still yields usable data
// before the store is enabled for import.
package check

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/priceowl/priceowl/internal/database"
	"github.com/priceowl/priceowl/internal/scrape"
)

// Prober issues a reachability probe and reports the HTTP status.
type Prober interface {
	Probe(url string) (int, error)
}

// defaultQueries are generic probe searches every compatible store must be
// able to answer.
var defaultQueries = []string{"Motor", "ESC"}

// Checker runs the compatibility state machine for a store: reachability,
// probe searches, then field extraction on sample products. The first
// failure short-circuits into a not-scrapable verdict with a reason.
type Checker struct {
	db        *database.DB
	prober    Prober
	extractor *scrape.Extractor
	queries   []string
}

// New creates a compatibility checker. queries may be nil to use the
// default probe set.
func New(db *database.DB, prober Prober, extractor *scrape.Extractor, queries []string) *Checker {
	if len(queries) == 0 {
		queries = defaultQueries
	}
	return &Checker{db: db, prober: prober, extractor: extractor, queries: queries}
}

// Check runs the full compatibility sequence and persists the verdict.
// Returns true when the store ends up scrapable.
func (c *Checker) Check(store *database.Store) (bool, error) {
	log.WithField("store", store.Name).Info("starting compatibility check")

	status, err := c.prober.Probe(store.Website)
	if err != nil {
		return c.fail(store, fmt.Sprintf("Cannot reach %s because of connection error", store.Website))
	}
	switch {
	case status == http.StatusServiceUnavailable:
		// Anti-bot front pages answer 503 to plain clients; switch the
		// store to browser rendering and keep checking.
		store.ScrapeWithJS = true
		if err := c.db.SetScrapeWithJS(store.ID, true); err != nil {
			return false, err
		}
	case status != http.StatusOK:
		return c.fail(store, fmt.Sprintf("Cannot reach %s status code was: %d", store.Website, status))
	}
	log.WithField("store", store.Name).Info("OK: we can reach the website")

	var productPages []string
	for _, query := range c.queries {
		urls := c.extractor.Search(query, store, 1)
		if len(urls) == 0 {
			return c.fail(store, fmt.Sprintf("The search for %s did not produce any url", query))
		}
		productPages = append(productPages, urls[0])
	}
	log.WithField("store", store.Name).Infof("OK: we can perform queries, got %d pages to check", len(productPages))

	for _, page := range productPages {
		data, ok := c.extractor.Product(page, store, database.DefaultFields)
		if !ok || data.Name == nil {
			return c.fail(store, fmt.Sprintf("Could not find a name for the product at %s", page))
		}
		if data.Price == nil {
			return c.fail(store, fmt.Sprintf("Could not find a price for the product at %s", page))
		}
	}

	if err := c.db.SetScrapable(store.ID); err != nil {
		return false, err
	}
	store.IsScrapable = true
	store.NotScrapableReason = nil
	log.WithField("store", store.Name).Info("store is compatible with scraping")
	return true, nil
}

func (c *Checker) fail(store *database.Store, reason string) (bool, error) {
	log.WithField("store", store.Name).Warn(reason)
	if err := c.db.SetNotScrapable(store.ID, reason); err != nil {
		return false, err
	}
	store.IsScrapable = false
	store.NotScrapableReason = &reason
	return false, nil
}
