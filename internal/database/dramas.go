package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const dramaColumns = `tmdb_id, title, original_title, overview, first_air_date, last_air_date,
	status, seasons, episodes, average_runtime, genres, country, language,
	network, production, rating, vote_count, popularity, main_cast,
	keywords, poster_path, backdrop_path`

// Same order as dramaColumns. Legacy tables allow NULL ratings.
const dramaSelect = `SELECT tmdb_id, title, original_title, overview, first_air_date, last_air_date,
	status, seasons, episodes, average_runtime, genres, country, language,
	network, production, COALESCE(rating, 0), vote_count, popularity, main_cast,
	keywords, poster_path, backdrop_path FROM kdramas`

const insertDramaSQL = `INSERT INTO kdramas (` + dramaColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (d *Drama) insertArgs() []any {
	return []any{
		d.TMDBID, d.Title, d.OriginalTitle, d.Overview, d.FirstAirDate, d.LastAirDate,
		d.Status, d.Seasons, d.Episodes, d.AverageRuntime, d.Genres, d.Country, d.Language,
		d.Network, d.Production, d.Rating, d.VoteCount, d.Popularity, d.MainCast,
		d.Keywords, d.PosterPath, d.BackdropPath,
	}
}

// ReplaceDramas replaces the whole kdramas table with the given rows in a
// single transaction. On any error nothing is committed and the previous
// contents stay visible. Returns the row count inside the transaction.
func (db *DB) ReplaceDramas(ctx context.Context, dramas []Drama) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	if _, err := tx.ExecContext(ctx, kdramasDDL); err != nil {
		return 0, fmt.Errorf("ensuring kdramas table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM kdramas"); err != nil {
		return 0, fmt.Errorf("clearing kdramas: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, db.dialect.rebind(insertDramaSQL))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range dramas {
		if _, err := stmt.ExecContext(ctx, dramas[i].insertArgs()...); err != nil {
			return 0, fmt.Errorf("inserting drama %d: %w", dramas[i].TMDBID, err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM kdramas").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting kdramas: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}

	db.logger.Debug("replaced kdramas", "rows", count)
	return count, nil
}

// GetDrama returns a single drama by TMDB id, or ErrNotFound.
func (db *DB) GetDrama(ctx context.Context, tmdbID int64) (*Drama, error) {
	row := db.conn.QueryRowContext(ctx, db.dialect.rebind(dramaSelect+" WHERE tmdb_id = ?"), tmdbID)
	d, err := scanDrama(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting drama %d: %w", tmdbID, err)
	}
	return d, nil
}

// CountDramas returns the number of rows in the kdramas table.
func (db *DB) CountDramas(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM kdramas").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting kdramas: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrama(row rowScanner) (*Drama, error) {
	var d Drama
	if err := row.Scan(&d.TMDBID, &d.Title, &d.OriginalTitle, &d.Overview, &d.FirstAirDate,
		&d.LastAirDate, &d.Status, &d.Seasons, &d.Episodes, &d.AverageRuntime, &d.Genres,
		&d.Country, &d.Language, &d.Network, &d.Production, &d.Rating, &d.VoteCount,
		&d.Popularity, &d.MainCast, &d.Keywords, &d.PosterPath, &d.BackdropPath); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDramas(rows *sql.Rows) ([]Drama, error) {
	dramas := []Drama{}
	for rows.Next() {
		d, err := scanDrama(rows)
		if err != nil {
			return nil, err
		}
		dramas = append(dramas, *d)
	}
	return dramas, rows.Err()
}
