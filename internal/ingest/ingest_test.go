package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/kdramadb/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

const threeRows = "tmdb_id,title,rating,status\n1,Alpha,8.5,Ended\n2,Beta,0,Ended\n3,Gamma,7.2,Returning Series\n"

func TestRunLoadsAndRecords(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	path := writeCSV(t, threeRows)

	res, err := New(db, Options{}, nil).Run(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Count)
	require.Len(t, res.Steps, 4)
	for _, s := range res.Steps {
		assert.NoError(t, s.Err, s.Name)
	}
	assert.Equal(t, []string{"Read", "Load", "Verify", "Record"},
		[]string{res.Steps[0].Name, res.Steps[1].Name, res.Steps[2].Name, res.Steps[3].Name})

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDramas)
	require.NotNil(t, stats.RatingStats.Average)
	assert.InDelta(t, 7.85, *stats.RatingStats.Average, 1e-9)

	run, err := db.GetLastIngestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, path, run.Source)
	assert.Equal(t, 3, run.RowCount)
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	path := writeCSV(t, threeRows)
	in := New(db, Options{}, nil)

	_, err := in.Run(ctx, path)
	require.NoError(t, err)
	first, err := db.SearchDramas(ctx, database.SearchParams{Limit: 100})
	require.NoError(t, err)

	_, err = in.Run(ctx, path)
	require.NoError(t, err)
	second, err := db.SearchDramas(ctx, database.SearchParams{Limit: 100})
	require.NoError(t, err)

	assert.Equal(t, first.Dramas, second.Dramas)
	assert.Equal(t, 3, second.Total)
}

func TestRunMissingFileLeavesStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	in := New(db, Options{}, nil)

	_, err := in.Run(ctx, writeCSV(t, threeRows))
	require.NoError(t, err)

	res, err := in.Run(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceNotFound))
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "Read", res.Steps[0].Name)

	count, err := db.CountDramas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunMalformedFileLeavesStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	in := New(db, Options{}, nil)

	_, err := in.Run(ctx, writeCSV(t, threeRows))
	require.NoError(t, err)

	_, err = in.Run(ctx, writeCSV(t, "title\nno ids here\n"))
	var ie *IngestionError
	require.ErrorAs(t, err, &ie)

	count, err := db.CountDramas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunCountsDroppedRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	res, err := New(db, Options{}, nil).Run(ctx, writeCSV(t, "tmdb_id,title\n1,A\n1,A dup\nx,bad\n2,B\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.Batch.Dropped())

	run, err := db.GetLastIngestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Dropped)
}
