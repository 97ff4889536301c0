package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

const schemaVersionDDL = `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at TEXT NOT NULL
)`

// getSchemaVersion returns the highest applied migration, 0 for a fresh database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// isLegacyDB returns true if the kdramas table exists but no version was
// ever recorded. This detects databases written by the conversion script
// that predates version tracking.
func isLegacyDB(conn *sql.DB, d dialect) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='kdramas'"
	if d == dialectPostgres {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'kdramas'"
	}
	var count int
	if err := conn.QueryRow(query).Scan(&count); err != nil {
		return false, fmt.Errorf("checking for legacy tables: %w", err)
	}
	return count > 0, nil
}

func stampVersion(exec func(string, ...any) (sql.Result, error), d dialect, version int) error {
	_, err := exec(
		d.rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
		version, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// migrate brings the database schema up to the latest version.
func migrate(conn *sql.DB, d dialect, logger hclog.Logger) error {
	if _, err := conn.Exec(schemaVersionDDL); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	// Legacy DB detection: kdramas exists but nothing is recorded.
	// Stamp as version 1 since the table already matches migration 1.
	if current == 0 {
		legacy, err := isLegacyDB(conn, d)
		if err != nil {
			return err
		}
		if legacy {
			logger.Info("detected legacy database, stamping as version 1")
			if err := stampVersion(conn.Exec, d, 1); err != nil {
				return fmt.Errorf("stamping legacy version: %w", err)
			}
			current = 1
		}
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := stampVersion(tx.Exec, d, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
