package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/kdramadb/internal/database"
)

// StepResult holds the result of a single ingestion step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of an ingestion run.
type Result struct {
	RunID  string
	Source string
	Batch  *Batch
	Count  int // rows in the table after the run
	Steps  []StepResult
}

// Ingester reads a source file and replaces the kdramas table with it.
type Ingester struct {
	db     *database.DB
	norm   *Normalizer
	logger hclog.Logger
	now    func() time.Time
}

// New creates an Ingester writing to db.
func New(db *database.DB, opts Options, logger hclog.Logger) *Ingester {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("ingest")
	return &Ingester{
		db:     db,
		norm:   NewNormalizer(opts, logger),
		logger: logger,
		now:    time.Now,
	}
}

// Run executes read, load, verify, and record. A source problem returns an
// *IngestionError before anything is written. Failing to record the run
// is reported in its step but does not fail the run, since the data is
// already committed.
func (in *Ingester) Run(ctx context.Context, path string) (*Result, error) {
	r := &Result{RunID: uuid.NewString(), Source: path}
	started := in.now()
	log := in.logger.With("run", r.RunID)

	// Step 1: Read
	log.Info("reading source", "path", path)
	batch, err := in.norm.ReadFile(path)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Read", Err: err})
		return r, err
	}
	r.Batch = batch
	r.Steps = append(r.Steps, StepResult{
		Name: "Read",
		Summary: fmt.Sprintf("%d rows (%s), %d kept, %d dropped",
			batch.Rows, batch.Encoding, len(batch.Dramas), batch.Dropped()),
	})

	// Step 2: Load
	count, err := in.db.ReplaceDramas(ctx, batch.Dramas)
	if err != nil {
		err = fmt.Errorf("loading dramas: %w", err)
		r.Steps = append(r.Steps, StepResult{Name: "Load", Err: err})
		return r, err
	}
	r.Count = count
	r.Steps = append(r.Steps, StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("replaced table contents with %d rows", count),
	})

	// Step 3: Verify
	if count != len(batch.Dramas) {
		err = fmt.Errorf("verifying load: table has %d rows, expected %d", count, len(batch.Dramas))
		r.Steps = append(r.Steps, StepResult{Name: "Verify", Err: err})
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{Name: "Verify", Summary: "row count matches source"})

	// Step 4: Record
	run := database.IngestRun{
		ID:         r.RunID,
		Source:     path,
		Encoding:   batch.Encoding,
		RowCount:   count,
		Dropped:    batch.Dropped(),
		StartedAt:  started,
		FinishedAt: in.now(),
	}
	if err := in.db.InsertIngestRun(ctx, run); err != nil {
		log.Warn("could not record ingest run", "error", err)
		r.Steps = append(r.Steps, StepResult{Name: "Record", Err: err})
	} else {
		r.Steps = append(r.Steps, StepResult{Name: "Record", Summary: "run " + r.RunID})
	}

	log.Info("ingestion complete", "rows", count, "dropped", batch.Dropped())
	return r, nil
}
