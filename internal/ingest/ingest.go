// Package ingest upserts scraped product data into the catalog.
package ingest

import (
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/priceowl/priceowl/internal/database"
	"github.com/priceowl/priceowl/internal/scrape"
)

// Ingestor writes scraped data into the product catalog with conflict
// handling and idempotent identity keys.
type Ingestor struct {
	db *database.DB
}

// New creates a product ingestor.
func New(db *database.DB) *Ingestor {
	return &Ingestor{db: db}
}

// Ingest upserts one scraped product for a store. Returns true only when a
// new catalog row was created. Data without a usable name is rejected;
// persistence failures are logged, never propagated.
func (ing *Ingestor) Ingest(store *database.Store, data *scrape.ProductData, query *database.ImportQuery) bool {
	if data == nil || data.Name == nil || strings.TrimSpace(*data.Name) == "" {
		log.WithField("store", store.Name).Warn("scraped product has no usable name, skipping")
		return false
	}
	name := strings.TrimSpace(*data.Name)

	product := &database.Product{
		ID:          database.ProductID(store.Name, name),
		Name:        name,
		Description: data.Description,
		Price:       data.Price,
		Currency:    data.Currency,
		Image:       data.Image,
		Link:        data.Link,
		Available:   data.Available,
		StoreID:     store.ID,
	}

	if query != nil {
		product.ImportQueryID = &query.ID
		if brand := matchBrand(query, name); brand != nil {
			product.Brand = brand
		}
	}

	if affiliate := affiliateLink(store, data.Link); affiliate != "" {
		product.AffiliateLink = &affiliate
	}

	log.WithFields(log.Fields{"store": store.Name, "product_id": product.ID}).Info("upserting product")

	created, err := ing.db.UpsertProduct(product)
	if err != nil {
		log.WithField("product_id", product.ID).Errorf("product not saved: %v", err)
		return false
	}
	return created
}

// matchBrand tags the query's brand when it occurs in the product name.
func matchBrand(query *database.ImportQuery, name string) *string {
	if query.Brand == nil || *query.Brand == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(name), strings.ToLower(*query.Brand)) {
		return query.Brand
	}
	return nil
}

// affiliateLink derives the affiliate form of a product link by setting the
// store's affiliate query parameter. Empty when the store has no affiliate
// rule.
func affiliateLink(store *database.Store, link string) string {
	if store.AffiliateParam == nil || *store.AffiliateParam == "" ||
		store.AffiliateID == nil || *store.AffiliateID == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set(*store.AffiliateParam, *store.AffiliateID)
	u.RawQuery = q.Encode()
	return u.String()
}
