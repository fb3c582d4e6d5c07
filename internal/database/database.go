package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; funnel all access through a single
	// connection so concurrent import workers queue instead of failing
	// with SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// ProductID derives the deterministic identity key for a product, so that
// re-scraping the same store+name pair lands on the same row.
func ProductID(storeName, productName string) string {
	return storeName + "_" + strings.ReplaceAll(productName, " ", "_")
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM stores", &s.TotalStores},
		{"SELECT COUNT(*) FROM stores WHERE is_scrapable = 1", &s.ScrapableStores},
		{"SELECT COUNT(*) FROM import_queries", &s.TotalQueries},
		{"SELECT COUNT(*) FROM import_queries WHERE is_active = 1", &s.ActiveQueries},
		{"SELECT COUNT(*) FROM products", &s.TotalProducts},
		{"SELECT COUNT(*) FROM products WHERE is_active = 1", &s.ActiveProducts},
		{"SELECT COUNT(*) FROM products WHERE is_active = 1 AND is_available = 1", &s.AvailableProducts},
		{"SELECT COUNT(*) FROM clicked_products", &s.TotalClicks},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
