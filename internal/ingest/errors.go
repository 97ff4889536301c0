package ingest

import (
	"errors"
	"fmt"
)

// ErrSourceNotFound is wrapped by IngestionError when the CSV file is missing.
var ErrSourceNotFound = errors.New("source file not found")

// IngestionError reports a source file that is missing, unreadable, or
// malformed. The store is left untouched when one is returned.
type IngestionError struct {
	Path string
	Op   string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
