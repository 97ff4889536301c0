package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
)

const topGenreCount = 10

// GetStats computes dataset-wide summaries in a single snapshot.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stats: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	s := &Stats{
		AvailableStatuses: []string{},
		StatusCounts:      []StatusCount{},
		TopGenres:         []GenreCount{},
	}

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM kdramas").Scan(&s.TotalDramas); err != nil {
		return nil, fmt.Errorf("counting kdramas: %w", err)
	}

	var avg, minRating, maxRating sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(rating), MIN(rating), MAX(rating) FROM kdramas WHERE rating > 0",
	).Scan(&s.RatingStats.Rated, &avg, &minRating, &maxRating); err != nil {
		return nil, fmt.Errorf("rating stats: %w", err)
	}
	if avg.Valid {
		rounded := math.Round(avg.Float64*100) / 100
		s.RatingStats.Average = &rounded
	}
	s.RatingStats.Min = minRating.Float64
	s.RatingStats.Max = maxRating.Float64

	rows, err := tx.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM kdramas
		WHERE status IS NOT NULL AND status <> ''
		GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		s.AvailableStatuses = append(s.AvailableStatuses, sc.Status)
		s.StatusCounts = append(s.StatusCounts, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.TopGenres, err = topGenres(ctx, tx, topGenreCount)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// topGenres splits the comma-joined genres column and counts each name.
func topGenres(ctx context.Context, tx *sql.Tx, n int) ([]GenreCount, error) {
	rows, err := tx.QueryContext(ctx, "SELECT genres FROM kdramas WHERE genres IS NOT NULL AND genres <> ''")
	if err != nil {
		return nil, fmt.Errorf("genre counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var genres string
		if err := rows.Scan(&genres); err != nil {
			return nil, err
		}
		for _, g := range strings.Split(genres, ",") {
			if g = strings.TrimSpace(g); g != "" {
				counts[g]++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]GenreCount, 0, len(counts))
	for g, c := range counts {
		result = append(result, GenreCount{Genre: g, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Genre < result[j].Genre
	})
	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}
