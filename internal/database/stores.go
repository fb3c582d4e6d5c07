package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// ValidateRules checks a store profile's selector rules at load time, so a
// broken profile is rejected before it ever reaches the extraction engine.
func (s *Store) ValidateRules() error {
	if s.Name == "" {
		return fmt.Errorf("store name is required")
	}
	if s.Website == "" {
		return fmt.Errorf("store website is required")
	}
	if s.Search.URL == "" || s.Search.Tag == "" || s.Search.Class == "" || s.Search.Link == "" {
		return fmt.Errorf("search rules need url, tag, class and link")
	}
	if s.Search.NextPage != "" && s.Search.PageParam != "" {
		return fmt.Errorf("search rules may use next_page or page_param, not both")
	}
	for field, rule := range s.Fields {
		if rule.Selector == "" {
			continue
		}
		if rule.Tag == "" {
			return fmt.Errorf("field %s: tag is required when a selector is set", field)
		}
		if rule.Kind != "class" && rule.Kind != "id" {
			return fmt.Errorf("field %s: kind must be class or id, got %q", field, rule.Kind)
		}
	}
	return nil
}

// InsertStore creates a new store profile. The selector rule sets are
// serialized into JSON columns.
func (db *DB) InsertStore(s *Store) (int64, error) {
	if err := s.ValidateRules(); err != nil {
		return 0, err
	}

	searchJSON, err := json.Marshal(s.Search)
	if err != nil {
		return 0, err
	}
	fieldsJSON, err := json.Marshal(s.Fields)
	if err != nil {
		return 0, err
	}

	result, err := db.conn.Exec(
		`INSERT INTO stores (name, website, region, locale, currency, scrape_with_js,
			affiliate_param, affiliate_id, search_rules, field_rules)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Website, s.Region, s.Locale, s.Currency, boolToInt(s.ScrapeWithJS),
		s.AffiliateParam, s.AffiliateID, string(searchJSON), string(fieldsJSON),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetStoreByName returns a store by its unique name, or nil if absent.
func (db *DB) GetStoreByName(name string) (*Store, error) {
	row := db.conn.QueryRow(storeSelect+" WHERE name = ?", name)
	s, err := scanStore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetStoreByID returns a store by ID, or nil if absent.
func (db *DB) GetStoreByID(storeID int64) (*Store, error) {
	row := db.conn.QueryRow(storeSelect+" WHERE id = ?", storeID)
	s, err := scanStore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveStores returns active stores, optionally filtered by region.
func (db *DB) GetActiveStores(region string) ([]Store, error) {
	query := storeSelect + " WHERE is_active = 1"
	var args []any
	if region != "" {
		query += " AND region = ?"
		args = append(args, region)
	}
	query += " ORDER BY name"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, *s)
	}
	return stores, rows.Err()
}

// SetScrapable marks a store as compatible with scraping, clears the reason
// and stamps last_check.
func (db *DB) SetScrapable(storeID int64) error {
	_, err := db.conn.Exec(
		`UPDATE stores SET is_scrapable = 1, not_scrapable_reason = NULL,
			last_check = datetime('now') WHERE id = ?`, storeID,
	)
	return err
}

// SetNotScrapable marks a store as incompatible with a human-readable reason.
func (db *DB) SetNotScrapable(storeID int64, reason string) error {
	_, err := db.conn.Exec(
		`UPDATE stores SET is_scrapable = 0, not_scrapable_reason = ?,
			last_check = datetime('now') WHERE id = ?`, reason, storeID,
	)
	return err
}

// SetScrapeWithJS flips the JS-rendering flag for a store.
func (db *DB) SetScrapeWithJS(storeID int64, withJS bool) error {
	_, err := db.conn.Exec(
		"UPDATE stores SET scrape_with_js = ? WHERE id = ?", boolToInt(withJS), storeID,
	)
	return err
}

// StampLastCheck records that an import run finished for a store.
func (db *DB) StampLastCheck(storeID int64) error {
	_, err := db.conn.Exec(
		"UPDATE stores SET last_check = datetime('now') WHERE id = ?", storeID,
	)
	return err
}

const storeSelect = `SELECT id, name, website, region, locale, currency, scrape_with_js,
	is_active, is_scrapable, not_scrapable_reason, last_check,
	affiliate_param, affiliate_id, search_rules, field_rules, created_at
	FROM stores`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (*Store, error) {
	var s Store
	var withJS, active, scrapable int
	var searchJSON, fieldsJSON string
	if err := row.Scan(&s.ID, &s.Name, &s.Website, &s.Region, &s.Locale, &s.Currency,
		&withJS, &active, &scrapable, &s.NotScrapableReason, &s.LastCheck,
		&s.AffiliateParam, &s.AffiliateID, &searchJSON, &fieldsJSON, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.ScrapeWithJS = withJS != 0
	s.IsActive = active != 0
	s.IsScrapable = scrapable != 0
	if err := json.Unmarshal([]byte(searchJSON), &s.Search); err != nil {
		return nil, fmt.Errorf("store %s: decoding search rules: %w", s.Name, err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &s.Fields); err != nil {
		return nil, fmt.Errorf("store %s: decoding field rules: %w", s.Name, err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
