// Package constraint implements ConstraintEngine: for each landmark with
// a usable RTT series and a matching calibration, it builds the pair of
// disks (empirical and physical-limit) that FeasibleSubsetSolver
// intersects.
package constraint

import (
	"errors"

	"go.uber.org/zap"

	"github.com/location-microservice/internal/domain"
	"github.com/location-microservice/internal/domain/calibration"
	"github.com/location-microservice/internal/domain/disk"
	apperr "github.com/location-microservice/internal/pkg/errors"
)

// Result is the output of Engine.Build: equal-length, same-order lists of
// empirical and physical-limit disks, one pair per matched landmark.
type Result struct {
	Empirical []disk.Disk
	Physical  []disk.Disk
	// Matched counts landmarks that produced a disk pair; Skipped counts
	// those without a usable RTT series or a calibration, plus those whose
	// empirical or physical disk failed with NumericDomain.
	Matched, Skipped int
}

// Engine builds constraint disks from preprocessed RTT series.
type Engine struct {
	builder *disk.Builder
	logger  *zap.Logger
}

// New builds an Engine that constructs disks with b.
func New(b *disk.Builder, l *zap.Logger) *Engine {
	return &Engine{builder: b, logger: l}
}

// Build produces the empirical/physical disk pair for every landmark
// present in both series and landmarks, under variant v's calibration.
func (e *Engine) Build(store *calibration.Store, v domain.CalibrationVariant, series map[string][]float32, landmarks []domain.LandmarkPosition) (Result, error) {
	var res Result

	for _, lm := range landmarks {
		rtts, ok := series[lm.IPv4.String()]
		if !ok || len(rtts) == 0 {
			res.Skipped++
			continue
		}

		cal, ok := store.Lookup(v, lm)
		if !ok {
			res.Skipped++
			continue
		}

		_, rMaxEmpirical := cal.Range(rtts)
		empiricalDisk, err := e.builder.Build(lm.Lon, lm.Lat, rMaxEmpirical)
		if err != nil {
			if !errors.Is(err, apperr.ErrNumericDomain) {
				return Result{}, err
			}
			if e.logger != nil {
				e.logger.Warn("skipping landmark with degenerate empirical disk",
					zap.String("landmark", lm.Label), zap.Error(err))
			}
			res.Skipped++
			continue
		}

		_, rMaxPhysical := calibration.PhysicalLimitRange(rtts)
		physicalDisk, err := e.builder.Build(lm.Lon, lm.Lat, rMaxPhysical)
		if err != nil {
			if !errors.Is(err, apperr.ErrNumericDomain) {
				return Result{}, err
			}
			if e.logger != nil {
				e.logger.Warn("skipping landmark with degenerate physical disk",
					zap.String("landmark", lm.Label), zap.Error(err))
			}
			res.Skipped++
			continue
		}

		res.Empirical = append(res.Empirical, empiricalDisk)
		res.Physical = append(res.Physical, physicalDisk)
		res.Matched++
	}

	if e.logger != nil && res.Skipped > 0 {
		e.logger.Debug("skipped landmarks without usable RTTs or calibration",
			zap.Int("skipped", res.Skipped), zap.Int("matched", res.Matched))
	}

	return res, nil
}
