package database

// RecordClick persists a click feedback event for a product and bumps the
// originating import query's priority score. The click is kept even when the
// product has been soft-deleted in the meantime.
func (db *DB) RecordClick(productID string, searchQuery *string, page *int) error {
	product, err := db.GetProduct(productID)
	if err != nil {
		return err
	}

	var pid *string
	if product != nil {
		pid = &product.ID
	}

	if _, err := db.conn.Exec(
		`INSERT INTO clicked_products (product_id, search_query, page) VALUES (?, ?, ?)`,
		pid, searchQuery, page,
	); err != nil {
		return err
	}

	if product != nil && product.ImportQueryID != nil {
		return db.bumpQueryClicks(*product.ImportQueryID)
	}
	return nil
}

// GetClicksForProduct returns the click events recorded for a product.
func (db *DB) GetClicksForProduct(productID string) ([]ClickedProduct, error) {
	rows, err := db.conn.Query(
		`SELECT id, product_id, search_query, page, clicked_at
		FROM clicked_products WHERE product_id = ? ORDER BY clicked_at DESC`, productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []ClickedProduct
	for rows.Next() {
		var c ClickedProduct
		if err := rows.Scan(&c.ID, &c.ProductID, &c.SearchQuery, &c.Page, &c.ClickedAt); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}
