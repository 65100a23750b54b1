// Package store provides the SQLite-backed repository layer for all
// inventory entities. Foreign keys are enforced so that deleting an item or
// project cascade-deletes its metadata, material, and tag association rows.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/marden/trove/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS suppliers (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	contact_info TEXT NOT NULL DEFAULT '',
	website      TEXT,
	notes        TEXT
);

CREATE TABLE IF NOT EXISTS items (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	category      TEXT,
	quantity      REAL,
	unit          TEXT,
	supplier_id   INTEGER REFERENCES suppliers(id) ON DELETE SET NULL,
	purchase_date TEXT,
	photo_path    TEXT
);

CREATE TABLE IF NOT EXISTS projects (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	description  TEXT,
	date_created TEXT
);

CREATE TABLE IF NOT EXISTS project_materials (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	item_id       INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	quantity_used REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tags (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL UNIQUE,
	color TEXT
);

CREATE TABLE IF NOT EXISTS item_tags (
	item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	tag_id  INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE(item_id, tag_id)
);

CREATE TABLE IF NOT EXISTS project_tags (
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	tag_id     INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE(project_id, tag_id)
);

CREATE TABLE IF NOT EXISTS item_metadata (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	key     TEXT NOT NULL,
	value   TEXT NOT NULL DEFAULT '',
	UNIQUE(item_id, key)
);

CREATE INDEX IF NOT EXISTS idx_items_supplier ON items(supplier_id);
CREATE INDEX IF NOT EXISTS idx_materials_project ON project_materials(project_id);
CREATE INDEX IF NOT EXISTS idx_materials_item ON project_materials(item_id);
CREATE INDEX IF NOT EXISTS idx_metadata_item ON item_metadata(item_id);
`

// DB wraps a sql.DB with repository operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// constraintErr maps driver constraint violations to shared sentinels, or
// returns nil for any other error.
func constraintErr(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return nil
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique:
		return apperr.ErrAlreadyExists
	case sqlite3.ErrConstraintForeignKey:
		return apperr.ErrConflict
	}
	return nil
}

// nullStr converts a nullable column to an optional field.
func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
