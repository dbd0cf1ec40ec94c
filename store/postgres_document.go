package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGPool is the subset of pgxpool.Pool the store needs; tests satisfy
// it with pgxmock.
type PGPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresDocumentStore persists records as JSONB rows keyed by
// patient name.
type PostgresDocumentStore struct {
	pool PGPool
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)

// NewPostgresDocumentStore opens a pool against the postgres:// URL
// and ensures the schema.
func NewPostgresDocumentStore(ctx context.Context, url string) (*PostgresDocumentStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: create postgres pool: %w", err)
	}
	s := &PostgresDocumentStore{pool: pool}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresDocumentStoreWithPool wraps an existing pool. Tests use
// this with pgxmock.
func NewPostgresDocumentStoreWithPool(pool PGPool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

// InitSchema creates the table if it does not exist.
func (s *PostgresDocumentStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS medical_records (
			id BIGSERIAL PRIMARY KEY,
			record_key TEXT NOT NULL,
			fields JSONB NOT NULL,
			meta JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_medical_records_key ON medical_records (record_key);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("store: create postgres schema: %w", err)
	}
	return nil
}

// Insert appends one row; duplicate keys accumulate.
func (s *PostgresDocumentStore) Insert(ctx context.Context, key string, fields map[string]any, meta map[string]any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: marshal fields for %s: %w", key, err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal metadata for %s: %w", key, err)
	}

	_, err = s.pool.Exec(ctx,
		"INSERT INTO medical_records (record_key, fields, meta) VALUES ($1, $2, $3)",
		key, fieldsJSON, metaJSON)
	if err != nil {
		return fmt.Errorf("store: insert document for %s: %w", key, err)
	}
	return nil
}

// Find pushes the filter down as a JSONB containment query.
func (s *PostgresDocumentStore) Find(ctx context.Context, filter map[string]any, projection []string) ([]Document, error) {
	query := "SELECT record_key, fields, meta FROM medical_records"
	var args []any
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("store: marshal filter: %w", err)
		}
		query += " WHERE fields @> $1"
		args = append(args, filterJSON)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var key string
		var fieldsJSON, metaJSON []byte
		if err := rows.Scan(&key, &fieldsJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("store: scan document row: %w", err)
		}

		doc := Document{Key: key}
		if err := json.Unmarshal(fieldsJSON, &doc.Fields); err != nil {
			return nil, fmt.Errorf("store: decode document %s: %w", key, err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode metadata %s: %w", key, err)
			}
		}
		out = append(out, project(doc, projection))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate documents: %w", err)
	}
	return out, nil
}

// Clear deletes every row.
func (s *PostgresDocumentStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM medical_records"); err != nil {
		return fmt.Errorf("store: clear documents: %w", err)
	}
	return nil
}

// Stats reports the row count.
func (s *PostgresDocumentStore) Stats(ctx context.Context) (*Stats, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM medical_records").Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("store: count documents: %w", err)
	}
	return &Stats{Backend: "postgres", Entries: n, LastUpdated: time.Now()}, nil
}

// Close closes the pool.
func (s *PostgresDocumentStore) Close() error {
	s.pool.Close()
	return nil
}
