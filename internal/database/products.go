package database

import (
	"database/sql"
	"time"

	log "github.com/sirupsen/logrus"
)

// UpsertProduct writes a scraped product keyed by its identity. If a row
// already exists its fields are overwritten in place (created=false),
// otherwise a row is inserted (created=true).
//
// A uniqueness conflict on insert means two workers raced on the same
// identity; the pre-existing row is soft-deactivated and the conflict never
// propagates to the caller.
func (db *DB) UpsertProduct(p *Product) (bool, error) {
	if p.ImportDate == nil {
		now := time.Now().UTC().Format(time.RFC3339)
		p.ImportDate = &now
	}

	result, err := db.conn.Exec(
		`UPDATE products SET name = ?, description = ?, price = ?, currency = ?,
			image = ?, link = ?, affiliate_link = ?, is_available = ?, brand = ?,
			store_id = ?, import_query_id = ?, import_date = ?, is_active = 1
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Currency,
		p.Image, p.Link, p.AffiliateLink, boolPtrToInt(p.Available), p.Brand,
		p.StoreID, p.ImportQueryID, p.ImportDate, p.ID,
	)
	if err != nil {
		return false, err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = db.conn.Exec(
		`INSERT INTO products (id, name, description, price, currency, image, link,
			affiliate_link, is_available, brand, store_id, import_query_id, import_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.Currency, p.Image, p.Link,
		p.AffiliateLink, boolPtrToInt(p.Available), p.Brand, p.StoreID, p.ImportQueryID, p.ImportDate,
	)
	if err != nil {
		// Benign race: a sibling worker inserted the same identity between
		// our UPDATE and INSERT. Deactivate the stale row instead of failing.
		log.WithField("product_id", p.ID).Warnf("insert conflict, deactivating existing row: %v", err)
		if _, derr := db.conn.Exec(
			"UPDATE products SET is_active = 0 WHERE id = ?", p.ID,
		); derr != nil {
			return false, derr
		}
		return false, nil
	}
	return true, nil
}

// GetProduct returns a product by identity key, or nil if absent.
func (db *DB) GetProduct(productID string) (*Product, error) {
	row := db.conn.QueryRow(productSelect+" WHERE id = ?", productID)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProductsForStore returns a store's active products, oldest import
// first, which is the order re-import walks them in.
func (db *DB) GetProductsForStore(storeID int64) ([]Product, error) {
	rows, err := db.conn.Query(
		productSelect+" WHERE store_id = ? AND is_active = 1 ORDER BY import_date", storeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// DeactivateProduct soft-deletes a product, keeping history and click
// references intact.
func (db *DB) DeactivateProduct(productID string) error {
	_, err := db.conn.Exec(
		"UPDATE products SET is_active = 0 WHERE id = ?", productID,
	)
	return err
}

// TopClickedProducts returns the most clicked active products.
func (db *DB) TopClickedProducts(limit int) ([]ClickedCount, error) {
	rows, err := db.conn.Query(
		`SELECT p.id, p.name, p.description, p.price, p.currency, p.image, p.link,
			p.affiliate_link, p.is_available, p.brand, p.store_id, p.import_query_id,
			p.import_date, p.is_active, p.created_at, COUNT(c.id) AS clicks
		FROM products p JOIN clicked_products c ON c.product_id = p.id
		WHERE p.is_active = 1
		GROUP BY p.id ORDER BY clicks DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClickedCount
	for rows.Next() {
		var cc ClickedCount
		p := &cc.Product
		var avail sql.NullInt64
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency,
			&p.Image, &p.Link, &p.AffiliateLink, &avail, &p.Brand, &p.StoreID,
			&p.ImportQueryID, &p.ImportDate, &active, &p.CreatedAt, &cc.Clicks); err != nil {
			return nil, err
		}
		p.Available = intToBoolPtr(avail)
		p.IsActive = active != 0
		out = append(out, cc)
	}
	return out, rows.Err()
}

const productSelect = `SELECT id, name, description, price, currency, image, link,
	affiliate_link, is_available, brand, store_id, import_query_id,
	import_date, is_active, created_at
	FROM products`

func scanProducts(rows *sql.Rows) ([]Product, error) {
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var avail sql.NullInt64
	var active int
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency,
		&p.Image, &p.Link, &p.AffiliateLink, &avail, &p.Brand, &p.StoreID,
		&p.ImportQueryID, &p.ImportDate, &active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Available = intToBoolPtr(avail)
	p.IsActive = active != 0
	return &p, nil
}

func boolPtrToInt(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func intToBoolPtr(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Int64 != 0
	return &b
}
