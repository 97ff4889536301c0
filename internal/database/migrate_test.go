package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateLegacyDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kdramas.db")

	// A database written by the old conversion script: REAL episodes,
	// nullable rating, no version table.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	_, err = raw.Exec(`CREATE TABLE kdramas (
		tmdb_id INTEGER PRIMARY KEY, title TEXT, original_title TEXT, overview TEXT,
		first_air_date TEXT, last_air_date TEXT, status TEXT, seasons INTEGER,
		episodes REAL, average_runtime REAL, genres TEXT, country TEXT, language TEXT,
		network TEXT, production TEXT, rating REAL, vote_count INTEGER, popularity REAL,
		main_cast TEXT, keywords TEXT, poster_path TEXT, backdrop_path TEXT
	);
	INSERT INTO kdramas (tmdb_id, title, episodes, rating) VALUES (42, 'Signal', 16.0, NULL);`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d after legacy migration, got %d", latestVersion(), version)
	}

	d, err := db.GetDrama(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetDrama on legacy row: %v", err)
	}
	if d.Rating != 0 {
		t.Errorf("expected NULL rating to read as 0, got %v", d.Rating)
	}
	if d.Episodes == nil || *d.Episodes != 16 {
		t.Errorf("expected 16 episodes, got %v", d.Episodes)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, err := getSchemaVersion(db2.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}

	var rows int
	if err := db2.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if rows != len(migrations) {
		t.Errorf("expected %d version rows, got %d", len(migrations), rows)
	}
}

func TestGetSchemaVersionNewDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(schemaVersionDDL); err != nil {
		t.Fatalf("create schema_version: %v", err)
	}
	version, err := getSchemaVersion(conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 on new db, got %d", version)
	}
}

func TestIsLegacyDBFalseOnNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	legacy, err := isLegacyDB(conn, dialectSQLite)
	if err != nil {
		t.Fatalf("isLegacyDB: %v", err)
	}
	if legacy {
		t.Error("expected isLegacyDB=false on empty database")
	}
}

func TestMigrateWithLogger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "logged.db")
	db, err := Open(dbPath, WithLogger(hclog.NewNullLogger()), WithMaxLimit(50))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.MaxLimit() != 50 {
		t.Errorf("expected max limit 50, got %d", db.MaxLimit())
	}
	if db.Location() != dbPath {
		t.Errorf("expected location %q, got %q", dbPath, db.Location())
	}
}
