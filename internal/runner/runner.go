package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/location-microservice/internal/domain"
	"github.com/location-microservice/internal/domain/calibration"
	"github.com/location-microservice/internal/domain/constraint"
	"github.com/location-microservice/internal/domain/disk"
	"github.com/location-microservice/internal/domain/preprocess"
	"github.com/location-microservice/internal/domain/region"
	"github.com/location-microservice/internal/domain/solve"
	apperr "github.com/location-microservice/internal/pkg/errors"
	"github.com/location-microservice/internal/repository/postgres"
)

const (
	tagAtSea             = "at-sea"
	tagEmptyIntersection = "empty-intersection"
	tagNoObservations    = "no-observations"
	outputExt            = "geojson"
)

// Deps are the shared, read-only resources every worker needs: the
// landmark table, calibration store, base map, and repository handles,
// loaded once by the coordinator and distributed by shared reference.
type Deps struct {
	Batches   *postgres.BatchRepository
	Landmarks []domain.LandmarkPosition
	Calib     *calibration.Store
	BaseMap   *region.BaseMap
	Builder   *disk.Builder
	Preproc   *preprocess.Preprocessor
	Engine    *constraint.Engine
	OutputDir string
	Logger    *zap.Logger
}

// Runner orchestrates the worker pool described in §5: one task per
// (batch, variant) pair, results reported in completion order,
// cancellation of remaining workers when the run's context is cancelled.
type Runner struct {
	deps       Deps
	numWorkers int
}

// New builds a Runner with the given pool size and shared dependencies.
func New(numWorkers int, deps Deps) *Runner {
	return &Runner{deps: deps, numWorkers: numWorkers}
}

// Run selects batch ids matching selector, runs every (batch, variant)
// pair in ReferenceVariants across the worker pool, and returns once all
// tasks have completed or ctx is cancelled, in which case the outcomes
// collected so far are returned.
func (r *Runner) Run(ctx context.Context, selector string) ([]Outcome, error) {
	ids, err := r.deps.Batches.SelectBatchIDs(ctx, selector)
	if err != nil {
		return nil, err
	}

	total := len(ids) * len(domain.ReferenceVariants)
	tasks := make(chan Task, total)
	results := make(chan Outcome, total)

	for _, id := range ids {
		for _, v := range domain.ReferenceVariants {
			tasks <- Task{BatchID: id, Variant: v}
		}
	}
	close(tasks)

	p := newPool(r.numWorkers, r.deps.Logger, tasks, results, r.processTask)
	p.start(ctx)

	// Per-batch failures (DbError after its retry, IoError writing one
	// output file) are recorded on the Outcome and do not cancel sibling
	// tasks; only startup-time failures to open the database, calibration
	// file, or base map are fatal, and those are checked before Run is
	// ever called.
	outcomes := make([]Outcome, 0, total)
collect:
	for i := 0; i < total; i++ {
		var outcome Outcome
		select {
		case outcome = <-results:
		case <-ctx.Done():
			break collect
		}
		if outcome.Err != nil {
			r.deps.Logger.Warn("batch task failed",
				zap.Int64("batch", outcome.Task.BatchID),
				zap.String("variant", outcome.Task.Variant.Tag),
				zap.Error(outcome.Err))
		}
		outcomes = append(outcomes, outcome)
	}

	if err := p.stop(); err != nil {
		r.deps.Logger.Warn("worker pool did not shut down cleanly", zap.Error(err))
	}

	return outcomes, nil
}

// processTask runs the full pipeline for one (batch, variant) pair:
// preprocess, build constraint disks, solve, clip to land, and write the
// output file.
func (r *Runner) processTask(ctx context.Context, task Task) Outcome {
	meta, err := r.fetchMetadataWithRetry(ctx, task.BatchID)
	if err != nil {
		return Outcome{Task: task, Err: err}
	}
	samples, err := r.fetchMeasurementsWithRetry(ctx, task.BatchID)
	if err != nil {
		return Outcome{Task: task, Err: err}
	}

	series := r.deps.Preproc.Process(&meta, samples, r.deps.Landmarks)

	built, err := r.deps.Engine.Build(r.deps.Calib, task.Variant, series, r.deps.Landmarks)
	if err != nil {
		return Outcome{Task: task, Err: err}
	}

	if built.Matched == 0 {
		return r.writeOutcome(task, meta, region.Empty, tagNoObservations)
	}

	baseRegion := r.deps.BaseMap.Region

	sol, err := solve.Solve(built.Physical, built.Empirical, baseRegion)
	if err != nil {
		return Outcome{Task: task, Err: err}
	}

	if sol.Region.IsEmpty() {
		return r.writeOutcome(task, meta, region.Empty, tagEmptyIntersection)
	}

	landOnly, err := sol.Region.Intersection(r.deps.BaseMap.Region)
	if err != nil {
		return Outcome{Task: task, Err: err}
	}

	if landOnly.IsEmpty() {
		meta.OnLand = false
		return r.writeOutcome(task, meta, sol.Region, tagAtSea)
	}

	meta.OnLand = true
	return r.writeOutcome(task, meta, landOnly, task.Variant.Tag)
}

// fetchMetadataWithRetry retries once on DbError, per §7's per-batch
// retry policy, before surfacing the failure as a skip.
func (r *Runner) fetchMetadataWithRetry(ctx context.Context, batchID int64) (domain.BatchMetadata, error) {
	meta, err := r.deps.Batches.Metadata(ctx, batchID)
	if err == nil || !errors.Is(err, apperr.ErrDatabase) {
		return meta, err
	}
	return r.deps.Batches.Metadata(ctx, batchID)
}

// fetchMeasurementsWithRetry retries once on DbError before surfacing the
// failure as a skip.
func (r *Runner) fetchMeasurementsWithRetry(ctx context.Context, batchID int64) ([]domain.RttSample, error) {
	samples, err := r.deps.Batches.Measurements(ctx, batchID)
	if err == nil {
		return samples, nil
	}
	return r.deps.Batches.Measurements(ctx, batchID)
}

// writeOutcome serializes reg as a GeoJSON Feature carrying meta's
// properties and writes it to <output_dir>/<tag>-<batch_id>.geojson.
func (r *Runner) writeOutcome(task Task, meta domain.BatchMetadata, reg region.Region, tag string) Outcome {
	feature, err := reg.ToGeoJSONFeature(meta.ToProperties())
	if err != nil {
		return Outcome{Task: task, Err: fmt.Errorf("%w: serialize region: %v", apperr.ErrData, err)}
	}

	encoded, err := json.Marshal(feature)
	if err != nil {
		return Outcome{Task: task, Err: fmt.Errorf("%w: encode geojson: %v", apperr.ErrData, err)}
	}

	filename := fmt.Sprintf("%s-%d.%s", tag, task.BatchID, outputExt)
	path := filepath.Join(r.deps.OutputDir, filename)
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return Outcome{Task: task, Err: fmt.Errorf("%w: write %q: %v", apperr.ErrIO, path, err)}
	}

	return Outcome{Task: task, OutputPath: path, Tag: tag}
}
