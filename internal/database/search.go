package database

import (
	"context"
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultLimit is the page size used when the caller does not pick one.
	DefaultLimit = 20
	// MaxLimit bounds a single page.
	MaxLimit = 100
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lowercase LIKE pattern that matches s literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func (p *SearchParams) normalize() {
	p.Term = strings.TrimSpace(p.Term)
	p.Genre = strings.TrimSpace(p.Genre)
	p.Status = strings.TrimSpace(p.Status)
}

func (p *SearchParams) validate() error {
	if p.Limit <= 0 {
		return &ValidationError{Field: "limit", Message: "must be greater than 0"}
	}
	if p.Offset < 0 {
		return &ValidationError{Field: "offset", Message: "must not be negative"}
	}
	if p.MinRating < 0 || math.IsNaN(p.MinRating) || math.IsInf(p.MinRating, 0) {
		return &ValidationError{Field: "min_rating", Message: "must be a non-negative number"}
	}
	return nil
}

// where returns the combined predicate and its arguments. All active
// filters are ANDed; an empty clause matches every row.
func (p *SearchParams) where(d dialect) (string, []any) {
	var clauses []string
	var args []any

	like := func(column string) string {
		return d.lower() + "(" + column + `) LIKE ? ESCAPE '\'`
	}

	if p.Term != "" {
		clauses = append(clauses, "("+like("title")+" OR "+like("original_title")+" OR "+like("overview")+")")
		pattern := containsPattern(p.Term)
		args = append(args, pattern, pattern, pattern)
	}
	if p.Genre != "" {
		clauses = append(clauses, like("genres"))
		args = append(args, containsPattern(p.Genre))
	}
	if p.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, p.Status)
	}
	if p.MinRating > 0 {
		clauses = append(clauses, "rating >= ?")
		args = append(args, p.MinRating)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// SearchDramas returns one page of dramas matching the filters, ordered by
// rating descending then tmdb_id ascending, plus the total match count.
// Limit is clamped to the configured maximum.
func (db *DB) SearchDramas(ctx context.Context, p SearchParams) (*SearchResult, error) {
	p.normalize()
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Limit > db.maxLimit {
		p.Limit = db.maxLimit
	}

	where, args := p.where(db.dialect)

	// Page and count share a transaction so a concurrent replace cannot
	// split them across two snapshots.
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin search: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	query := dramaSelect + where + " ORDER BY COALESCE(rating, 0) DESC, tmdb_id ASC LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), p.Limit, p.Offset)

	rows, err := tx.QueryContext(ctx, db.dialect.rebind(query), pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("searching dramas: %w", err)
	}
	dramas, err := scanDramas(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scanning dramas: %w", err)
	}

	var total int
	if err := tx.QueryRowContext(ctx, db.dialect.rebind("SELECT COUNT(*) FROM kdramas"+where), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}

	return &SearchResult{
		Dramas:  dramas,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(dramas) < total,
	}, nil
}
