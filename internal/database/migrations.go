package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// kdramasDDL is valid for both SQLite and PostgreSQL. The table name and
// columns match databases produced by the earlier conversion script.
const kdramasDDL = `
CREATE TABLE IF NOT EXISTS kdramas (
    tmdb_id BIGINT PRIMARY KEY,
    title TEXT,
    original_title TEXT,
    overview TEXT,
    first_air_date TEXT,
    last_air_date TEXT,
    status TEXT,
    seasons INTEGER,
    episodes INTEGER,
    average_runtime DOUBLE PRECISION,
    genres TEXT,
    country TEXT,
    language TEXT,
    network TEXT,
    production TEXT,
    rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    vote_count INTEGER,
    popularity DOUBLE PRECISION,
    main_cast TEXT,
    keywords TEXT,
    poster_path TEXT,
    backdrop_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_kdramas_rating ON kdramas(rating);
CREATE INDEX IF NOT EXISTS idx_kdramas_status ON kdramas(status);
`

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "kdramas table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(kdramasDDL)
			return err
		},
	},
	{
		Version:     2,
		Description: "ingest run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    encoding TEXT NOT NULL,
    row_count INTEGER NOT NULL DEFAULT 0,
    dropped INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_finished ON ingest_runs(finished_at);
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
