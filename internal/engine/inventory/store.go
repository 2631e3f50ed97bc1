// Package inventory is a reference scoring and graph traversal engine over a small
// life-cycle inventory held in SQLite. It models unit processes linked by
// technosphere exchanges, elementary flows linked by biosphere exchanges, and impact
// methods as characterization factors on flows.
package inventory

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Store is the SQLite model database.
type Store struct {
	db *sql.DB
}

// Open opens the model database at dsn and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "inventory: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS databases (
	name       TEXT PRIMARY KEY,
	background INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS activities (
	id       INTEGER PRIMARY KEY,
	database TEXT NOT NULL REFERENCES databases(name),
	name     TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	type     TEXT NOT NULL DEFAULT 'process',
	unit     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS exchanges (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	input_id         INTEGER NOT NULL REFERENCES activities(id),
	output_id        INTEGER NOT NULL REFERENCES activities(id),
	amount           REAL NOT NULL,
	type             TEXT NOT NULL,
	uncertainty_type INTEGER NOT NULL DEFAULT 0,
	loc              REAL,
	scale            REAL,
	minimum          REAL,
	maximum          REAL
);

CREATE TABLE IF NOT EXISTS methods (
	name TEXT PRIMARY KEY,
	unit TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS characterization_factors (
	method  TEXT NOT NULL REFERENCES methods(name),
	flow_id INTEGER NOT NULL REFERENCES activities(id),
	factor  REAL NOT NULL,
	PRIMARY KEY (method, flow_id)
);

CREATE INDEX IF NOT EXISTS idx_activities_lookup ON activities(database, name, location);
CREATE INDEX IF NOT EXISTS idx_exchanges_output ON exchanges(output_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_exchanges_unique_pair ON exchanges(input_id, output_id);
`

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "inventory: migrate")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Project returns the project name recorded at import, or "" if none.
func (s *Store) Project(ctx context.Context) (string, error) {
	var project string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'project'`).Scan(&project)
	if eris.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "inventory: read project")
	}
	return project, nil
}
