// Package importer fans scraping work out across (query, store) pairs with
// bounded concurrency and per-unit failure isolation.
package importer

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/priceowl/priceowl/internal/database"
	"github.com/priceowl/priceowl/internal/ingest"
	"github.com/priceowl/priceowl/internal/scrape"
)

// Options tunes the orchestrator's worker pool and politeness intervals.
type Options struct {
	Workers         int
	CreatedDelayMin time.Duration // sleep bounds after creating a new product
	CreatedDelayMax time.Duration
	ReimportDelay   time.Duration // sleep between products during re-import
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 5
	}
	if o.CreatedDelayMin <= 0 {
		o.CreatedDelayMin = 3 * time.Second
	}
	if o.CreatedDelayMax < o.CreatedDelayMin {
		o.CreatedDelayMax = o.CreatedDelayMin + 4*time.Second
	}
	if o.ReimportDelay <= 0 {
		o.ReimportDelay = 2 * time.Second
	}
}

// Result holds the counters of an orchestrated run.
type Result struct {
	Units       int
	FailedUnits int
	Created     int
	Updated     int
	Deactivated int
}

// Importer orchestrates search-and-import and re-import runs. Units of work
// share nothing but the database, whose idempotent upsert is the only
// synchronization point.
type Importer struct {
	db        *database.DB
	extractor *scrape.Extractor
	ingestor  *ingest.Ingestor
	opts      Options
}

// New creates an import orchestrator.
func New(db *database.DB, extractor *scrape.Extractor, ingestor *ingest.Ingestor, opts Options) *Importer {
	opts.defaults()
	return &Importer{db: db, extractor: extractor, ingestor: ingestor, opts: opts}
}

// ImportAll runs every active import query against every scrapable store in
// the region scope (empty region means all). Each (query, store) pair is an
// independent unit; a failing unit is logged and never cancels siblings.
func (imp *Importer) ImportAll(ctx context.Context, region string) (*Result, error) {
	stores, err := imp.db.GetActiveStores(region)
	if err != nil {
		return nil, err
	}
	queries, err := imp.db.GetActiveQueries()
	if err != nil {
		return nil, err
	}

	var created, updated, failed atomic.Int64
	units := 0

	g := &errgroup.Group{}
	g.SetLimit(imp.opts.Workers)

	for i := range stores {
		store := &stores[i]
		if !store.IsScrapable {
			log.WithField("store", store.Name).Warn("store is not compatible, import cancelled")
			continue
		}
		for j := range queries {
			query := &queries[j]
			units++
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				c, u, hadFailure := imp.importQuery(ctx, store, query)
				created.Add(int64(c))
				updated.Add(int64(u))
				if hadFailure {
					failed.Add(1)
				}
				return nil
			})
		}
	}
	g.Wait()

	for i := range stores {
		if !stores[i].IsScrapable {
			continue
		}
		if err := imp.db.StampLastCheck(stores[i].ID); err != nil {
			log.WithField("store", stores[i].Name).Warnf("stamping last check: %v", err)
		}
	}

	return &Result{
		Units:       units,
		FailedUnits: int(failed.Load()),
		Created:     int(created.Load()),
		Updated:     int(updated.Load()),
	}, nil
}

// ImportStore runs every active query against a single store, then stamps
// the store's last check timestamp.
func (imp *Importer) ImportStore(ctx context.Context, store *database.Store) (*Result, error) {
	if !store.IsScrapable {
		log.WithField("store", store.Name).Warn("store is not compatible, import cancelled")
		return &Result{}, nil
	}

	queries, err := imp.db.GetActiveQueries()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{}
	for i := range queries {
		c, u, hadFailure := imp.importQuery(ctx, store, &queries[i])
		result.Units++
		result.Created += c
		result.Updated += u
		if hadFailure {
			result.FailedUnits++
		}
	}

	if err := imp.db.StampLastCheck(store.ID); err != nil {
		log.WithField("store", store.Name).Warnf("stamping last check: %v", err)
	}
	log.WithField("store", store.Name).Infof("imported new products in %s", time.Since(start).Round(time.Second))
	return result, nil
}

// importQuery is one unit of work: search a store for a query and ingest
// every resulting product page. Faults are contained here.
func (imp *Importer) importQuery(ctx context.Context, store *database.Store, query *database.ImportQuery) (created, updated int, hadFailure bool) {
	logger := log.WithFields(log.Fields{"store": store.Name, "query": query.Text})
	logger.Info("importing")

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("import unit panicked: %v", r)
			hadFailure = true
		}
	}()

	urls := imp.extractor.Search(query.Text, store, 0)
	for _, pageURL := range urls {
		if ctx.Err() != nil {
			return created, updated, hadFailure
		}
		data, ok := imp.extractor.Product(pageURL, store, database.AllFields)
		if !ok {
			hadFailure = true
			continue
		}
		if imp.ingestor.Ingest(store, data, query) {
			created++
			imp.politenessSleep(ctx)
		} else {
			updated++
		}
	}
	logger.Infof("imported %d new products from %d result pages", created, len(urls))
	return created, updated, hadFailure
}

// ReimportAll re-imports every active store's known products, one store per
// pool unit.
func (imp *Importer) ReimportAll(ctx context.Context) (*Result, error) {
	stores, err := imp.db.GetActiveStores("")
	if err != nil {
		return nil, err
	}

	var created, updated, deactivated, failed atomic.Int64

	g := &errgroup.Group{}
	g.SetLimit(imp.opts.Workers)

	for i := range stores {
		store := &stores[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r, err := imp.ReimportStore(ctx, store)
			if err != nil {
				log.WithField("store", store.Name).Errorf("re-import failed: %v", err)
				failed.Add(1)
				return nil
			}
			created.Add(int64(r.Created))
			updated.Add(int64(r.Updated))
			deactivated.Add(int64(r.Deactivated))
			return nil
		})
	}
	g.Wait()

	return &Result{
		Units:       len(stores),
		FailedUnits: int(failed.Load()),
		Created:     int(created.Load()),
		Updated:     int(updated.Load()),
		Deactivated: int(deactivated.Load()),
	}, nil
}

// ReimportStore re-fetches a store's known products oldest first, using each
// product's original link and origin query. A product whose page can no
// longer be fetched is soft-deactivated; the run continues.
func (imp *Importer) ReimportStore(ctx context.Context, store *database.Store) (*Result, error) {
	products, err := imp.db.GetProductsForStore(store.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{Units: 1}
	for i := range products {
		if ctx.Err() != nil {
			return result, nil
		}
		product := &products[i]
		log.WithFields(log.Fields{"store": store.Name, "product": product.Name}).Info("re-importing")

		data, ok := imp.extractor.Product(product.Link, store, database.AllFields)
		if !ok {
			log.WithField("product_id", product.ID).Warn("product page gone, deactivating")
			if err := imp.db.DeactivateProduct(product.ID); err != nil {
				log.WithField("product_id", product.ID).Errorf("deactivating: %v", err)
			}
			result.Deactivated++
			continue
		}

		var query *database.ImportQuery
		if product.ImportQueryID != nil {
			query, _ = imp.db.GetQuery(*product.ImportQueryID)
		}
		if imp.ingestor.Ingest(store, data, query) {
			result.Created++
		} else {
			result.Updated++
		}
		imp.sleep(ctx, imp.opts.ReimportDelay)
	}
	return result, nil
}

// politenessSleep pauses a uniformly random interval inside the configured
// bounds after a new product was created.
func (imp *Importer) politenessSleep(ctx context.Context) {
	span := imp.opts.CreatedDelayMax - imp.opts.CreatedDelayMin
	delay := imp.opts.CreatedDelayMin
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	imp.sleep(ctx, delay)
}

func (imp *Importer) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
