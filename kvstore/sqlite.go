package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/diario/dbopen"
	_ "modernc.org/sqlite"
)

// Schema is the single table backing the SQLite store. Namespaces keep the
// history and group configuration apart the way separate blob stores would.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
);
`

// SQLite is a Store over one namespace of the kv table.
type SQLite struct {
	db        *sql.DB
	namespace string
}

// OpenSQLite opens (or creates) the database at path and returns a store
// bound to namespace. The caller owns closing the returned *sql.DB.
func OpenSQLite(path, namespace string) (*SQLite, *sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, nil, err
	}
	// One writer keeps read-after-write trivially consistent.
	db.SetMaxOpenConns(1)
	return NewSQLite(db, namespace), db, nil
}

// NewSQLite wraps an already-opened database that has Schema applied.
func NewSQLite(db *sql.DB, namespace string) *SQLite {
	return &SQLite{db: db, namespace: namespace}
}

// Namespace returns a store over another namespace of the same database.
func (s *SQLite) Namespace(ns string) *SQLite {
	return &SQLite{db: s.db, namespace: ns}
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: sqlite get %s/%s: %w", s.namespace, key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("kvstore: sqlite set %s/%s: %w", s.namespace, key, err)
	}
	return nil
}
