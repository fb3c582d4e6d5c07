package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS stores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    website TEXT NOT NULL,
    region TEXT DEFAULT 'OTH',
    locale TEXT DEFAULT 'it_IT',
    currency TEXT DEFAULT 'EUR',
    scrape_with_js INTEGER DEFAULT 0,
    is_active INTEGER DEFAULT 1,
    is_scrapable INTEGER DEFAULT 0,
    not_scrapable_reason TEXT,
    last_check TEXT,
    affiliate_param TEXT,
    affiliate_id TEXT,
    search_rules TEXT NOT NULL,
    field_rules TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS import_queries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    priority INTEGER DEFAULT 1,
    clicks INTEGER DEFAULT 0,
    priority_score REAL DEFAULT 1.0,
    brand TEXT,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    price REAL,
    currency TEXT,
    image TEXT,
    link TEXT NOT NULL,
    affiliate_link TEXT,
    is_available INTEGER,
    brand TEXT,
    store_id INTEGER NOT NULL REFERENCES stores(id),
    import_query_id INTEGER REFERENCES import_queries(id),
    import_date TEXT,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS clicked_products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id TEXT REFERENCES products(id) ON DELETE SET NULL,
    search_query TEXT,
    page INTEGER,
    clicked_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_products_store ON products(store_id);
CREATE INDEX IF NOT EXISTS idx_products_import_date ON products(import_date);
CREATE INDEX IF NOT EXISTS idx_clicked_products_product ON clicked_products(product_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
