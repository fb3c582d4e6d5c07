package database

import (
	"database/sql"
)

// InsertImportQuery creates a new import query at the given priority tier.
func (db *DB) InsertImportQuery(text string, priority int, brand *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO import_queries (text, priority, priority_score, brand)
		VALUES (?, ?, ?, ?)`,
		text, priority, float64(priority), brand,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAllQueries returns every import query, highest priority score first.
func (db *DB) GetAllQueries() ([]ImportQuery, error) {
	return db.queryImportQueries(querySelect + " ORDER BY priority_score DESC, id")
}

// GetActiveQueries returns active import queries, highest priority score
// first, so the most valuable searches run before the long tail.
func (db *DB) GetActiveQueries() ([]ImportQuery, error) {
	return db.queryImportQueries(querySelect + " WHERE is_active = 1 ORDER BY priority_score DESC, id")
}

// GetQuery returns a single import query by ID, or nil if absent.
func (db *DB) GetQuery(queryID int64) (*ImportQuery, error) {
	row := db.conn.QueryRow(querySelect+" WHERE id = ?", queryID)
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ToggleQuery flips a query's active state.
func (db *DB) ToggleQuery(queryID int64) error {
	_, err := db.conn.Exec(
		"UPDATE import_queries SET is_active = 1 - is_active WHERE id = ?", queryID,
	)
	return err
}

// bumpQueryClicks increments a query's click counter and recomputes the
// priority score. The score only ever grows.
func (db *DB) bumpQueryClicks(queryID int64) error {
	_, err := db.conn.Exec(
		`UPDATE import_queries
		SET clicks = clicks + 1,
			priority_score = priority + (clicks + 1) / 100.0
		WHERE id = ?`, queryID,
	)
	return err
}

const querySelect = `SELECT id, text, priority, clicks, priority_score, brand, is_active, created_at
	FROM import_queries`

func (db *DB) queryImportQueries(query string, args ...any) ([]ImportQuery, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []ImportQuery
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

func scanQuery(row rowScanner) (*ImportQuery, error) {
	var q ImportQuery
	var active int
	if err := row.Scan(&q.ID, &q.Text, &q.Priority, &q.Clicks, &q.PriorityScore,
		&q.Brand, &active, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.IsActive = active != 0
	return &q, nil
}
