// Package runner implements BatchRunner: a pool of worker tasks, each
// processing one (batch, variant) pair to completion, reporting results
// in completion order and writing one output file per pair.
package runner

import (
	"github.com/location-microservice/internal/domain"
)

// Task is one unit of work: run the pipeline for batchID under variant.
type Task struct {
	BatchID int64
	Variant domain.CalibrationVariant
}

// Outcome is what happened processing a Task: either OutputPath names
// the file written, or Err carries a fatal per-task error (a per-row or
// per-disk warning never reaches here; it's logged and the pipeline
// degrades gracefully instead).
type Outcome struct {
	Task       Task
	OutputPath string
	Tag        string // variant tag, or an error tag: at-sea, empty-intersection, no-observations
	Err        error
}
