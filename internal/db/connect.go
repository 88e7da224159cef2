package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:mindengage-cat.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/mindengage_cat?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer; the event log relies on serialized appends
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS cat_items (
  id TEXT PRIMARY KEY,
  item_type TEXT NOT NULL,
  band TEXT NOT NULL,
  discrimination REAL NOT NULL DEFAULT 1,
  difficulty REAL NOT NULL DEFAULT 0,
  guessing REAL NOT NULL DEFAULT 0,
  subject TEXT NOT NULL DEFAULT '',
  topic TEXT NOT NULL DEFAULT '',
  prompt TEXT NOT NULL DEFAULT '',
  choices_json TEXT NOT NULL DEFAULT '[]',
  answer_key_json TEXT NOT NULL DEFAULT '[]',
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cat_sessions (
  id TEXT PRIMARY KEY,
  candidate_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  items_asked INTEGER NOT NULL DEFAULT 0,
  last_seq INTEGER NOT NULL,
  started_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS cat_sessions_candidate ON cat_sessions (candidate_id);

CREATE TABLE IF NOT EXISTS cat_events (
  session_id TEXT NOT NULL REFERENCES cat_sessions(id) ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
  seq INTEGER NOT NULL,
  typ TEXT NOT NULL,      -- session_started | turn_recorded | session_aborted
  data TEXT NOT NULL,     -- JSON payload
  created_at INTEGER NOT NULL,
  PRIMARY KEY (session_id, seq)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS cat_items (
  id TEXT PRIMARY KEY,
  item_type TEXT NOT NULL,
  band TEXT NOT NULL,
  discrimination DOUBLE PRECISION NOT NULL DEFAULT 1,
  difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
  guessing DOUBLE PRECISION NOT NULL DEFAULT 0,
  subject TEXT NOT NULL DEFAULT '',
  topic TEXT NOT NULL DEFAULT '',
  prompt TEXT NOT NULL DEFAULT '',
  choices_json TEXT NOT NULL DEFAULT '[]',
  answer_key_json TEXT NOT NULL DEFAULT '[]',
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS cat_sessions (
  id TEXT PRIMARY KEY,
  candidate_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  items_asked INTEGER NOT NULL DEFAULT 0,
  last_seq BIGINT NOT NULL,
  started_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS cat_sessions_candidate ON cat_sessions (candidate_id);

CREATE TABLE IF NOT EXISTS cat_events (
  session_id TEXT NOT NULL REFERENCES cat_sessions(id) ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
  seq BIGINT NOT NULL,
  typ TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (session_id, seq)
);
`
