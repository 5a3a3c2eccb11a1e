// Package sqlite implements the decision and audit stores on an embedded
// SQLite file, for single-host deployments without PostgreSQL.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS decisions (
    id             TEXT PRIMARY KEY,
    cycle_id       TEXT    NOT NULL,
    kind           TEXT    NOT NULL,
    market_id      INTEGER NOT NULL,
    question       TEXT    NOT NULL DEFAULT '',
    outcome        INTEGER NOT NULL,
    method         TEXT    NOT NULL DEFAULT '',
    amount         TEXT    NOT NULL DEFAULT '',
    justification  TEXT    NOT NULL DEFAULT '',
    status         TEXT    NOT NULL,
    tx_hash        TEXT    NOT NULL DEFAULT '',
    error          TEXT    NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions (created_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event       TEXT    NOT NULL,
    workflow    TEXT    NOT NULL DEFAULT '',
    cycle_id    TEXT    NOT NULL DEFAULT '',
    market_id   INTEGER,
    detail      TEXT,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at DESC);
`

// auditTagColumns were added to audit_log after the first release.
var auditTagColumns = []struct{ name, ddl string }{
	{"workflow", "TEXT NOT NULL DEFAULT ''"},
	{"cycle_id", "TEXT NOT NULL DEFAULT ''"},
	{"market_id", "INTEGER"},
}

const auditTagIndexes = `
CREATE INDEX IF NOT EXISTS idx_audit_log_workflow ON audit_log (workflow, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_cycle ON audit_log (cycle_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_market ON audit_log (market_id, created_at DESC);
`

// Open creates or opens a SQLite database at path with WAL mode enabled.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	return db, nil
}

// Migrate creates the schema and adds columns missing from older files.
// Safe to call repeatedly.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("sqlite: running migrations: %w", err)
	}

	have := make(map[string]bool)
	rows, err := db.Query(`SELECT name FROM pragma_table_info('audit_log')`)
	if err != nil {
		return fmt.Errorf("sqlite: reading audit_log columns: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: reading audit_log columns: %w", err)
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: reading audit_log columns: %w", err)
	}

	for _, c := range auditTagColumns {
		if have[c.name] {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE audit_log ADD COLUMN %s %s", c.name, c.ddl)); err != nil {
			return fmt.Errorf("sqlite: adding audit_log.%s: %w", c.name, err)
		}
	}
	if _, err := db.Exec(auditTagIndexes); err != nil {
		return fmt.Errorf("sqlite: creating audit_log indexes: %w", err)
	}
	return nil
}
