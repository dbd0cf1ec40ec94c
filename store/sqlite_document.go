package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS medical_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_key TEXT NOT NULL,
	fields TEXT NOT NULL,
	meta TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_medical_records_key ON medical_records(record_key);
`

// SQLiteDocumentStore persists records as JSON text in a single table,
// keyed by patient. It is the zero-infrastructure server-backed option.
type SQLiteDocumentStore struct {
	db *sql.DB
}

var _ DocumentStore = (*SQLiteDocumentStore)(nil)

// NewSQLiteDocumentStore opens (or creates) the database file and
// ensures the schema. Pass ":memory:" for an ephemeral store.
func NewSQLiteDocumentStore(path string) (*SQLiteDocumentStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create sqlite schema: %w", err)
	}
	return &SQLiteDocumentStore{db: db}, nil
}

// Insert appends one row; duplicate keys accumulate.
func (s *SQLiteDocumentStore) Insert(ctx context.Context, key string, fields map[string]any, meta map[string]any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: marshal fields for %s: %w", key, err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal metadata for %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO medical_records (record_key, fields, meta) VALUES (?, ?, ?)",
		key, string(fieldsJSON), string(metaJSON))
	if err != nil {
		return fmt.Errorf("store: insert document for %s: %w", key, err)
	}
	return nil
}

// Find loads candidate rows and applies the filter in Go. A
// patient_name filter narrows the scan with the key index first.
func (s *SQLiteDocumentStore) Find(ctx context.Context, filter map[string]any, projection []string) ([]Document, error) {
	query := "SELECT record_key, fields, meta FROM medical_records"
	var args []any
	if name, ok := filter["patient_name"].(string); ok {
		query += " WHERE record_key = ?"
		args = append(args, name)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var key, fieldsJSON string
		var metaJSON sql.NullString
		if err := rows.Scan(&key, &fieldsJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("store: scan document row: %w", err)
		}

		doc := Document{Key: key}
		if err := json.Unmarshal([]byte(fieldsJSON), &doc.Fields); err != nil {
			return nil, fmt.Errorf("store: decode document %s: %w", key, err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode metadata %s: %w", key, err)
			}
		}
		if !matchesJSONFilter(doc.Fields, filter) {
			continue
		}
		out = append(out, project(doc, projection))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate documents: %w", err)
	}
	return out, nil
}

// matchesJSONFilter compares with JSON number semantics: filter ints
// match the float64 values json.Unmarshal produces.
func matchesJSONFilter(fields map[string]any, filter map[string]any) bool {
	for key, want := range filter {
		got, exists := fields[key]
		if !exists {
			return false
		}
		if n, ok := want.(int); ok {
			if f, ok := got.(float64); ok && f == float64(n) {
				continue
			}
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// Clear deletes every row.
func (s *SQLiteDocumentStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM medical_records"); err != nil {
		return fmt.Errorf("store: clear documents: %w", err)
	}
	return nil
}

// Stats reports the row count.
func (s *SQLiteDocumentStore) Stats(ctx context.Context) (*Stats, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM medical_records").Scan(&n); err != nil {
		return nil, fmt.Errorf("store: count documents: %w", err)
	}
	return &Stats{Backend: "sqlite", Entries: n, LastUpdated: time.Now()}, nil
}

// Close closes the database handle.
func (s *SQLiteDocumentStore) Close() error {
	return s.db.Close()
}
