// Package calibration implements CalibrationStore: an immutable mapping
// from landmark identity to calibration parameters per algorithm variant,
// plus the physical-limit model used independently of any calibration.
//
// Following the "tagged variants instead of dynamic typing" design note,
// Calibration is a small struct tagged by domain.ModelKind with a Range
// method that switches on the tag, rather than an interface hierarchy.
package calibration

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/location-microservice/internal/domain"
	apperr "github.com/location-microservice/internal/pkg/errors"
)

// speedOfLightTwoThirds is two-thirds the speed of light in vacuum, the
// commonly used estimate for propagation speed in fiber.
const speedOfLightTwoThirds = 299_792_458.0 * 2.0 / 3.0

// gaussian90PctZ is the z-score bounding the central 90% of a normal
// distribution (5th to 95th percentile).
const gaussian90PctZ = 1.6448536269514722

// Calibration is a single landmark's (or the pooled global) model
// instance for one variant.
type Calibration struct {
	Kind domain.ModelKind
	M    float64 // meters per millisecond
	B    float64 // meters
	// Sigma is only meaningful for ModelSpotterGaussian: the standard
	// deviation, in meters, of the fitted distance distribution.
	Sigma float64
}

// Range turns a sorted (ascending) series of RTT samples in milliseconds
// into a (r_min_m, r_max_m) bound in meters.
func (c Calibration) Range(sortedRttsMs []float32) (rMin, rMax float64) {
	if len(sortedRttsMs) == 0 {
		return 0, math.Inf(1)
	}
	minRtt := float64(sortedRttsMs[0])

	switch c.Kind {
	case domain.ModelSpotterGaussian:
		mean := c.M*minRtt + c.B
		low := mean - gaussian90PctZ*c.Sigma
		high := mean + gaussian90PctZ*c.Sigma
		if low < 0 {
			low = 0
		}
		if high < low {
			high = low
		}
		return low, high
	default: // CBG, Octant, Spotter-Uniform: MinMax ranging
		rMax := c.M*minRtt + c.B
		if rMax < 0 {
			rMax = 0
		}
		return 0, rMax
	}
}

// PhysicalLimitRange is the speed-of-light upper bound disk's ranging
// function: r_max = (2/3 c) * (minrtt / 2), independent of any fitted
// calibration. minrtt is converted from milliseconds to seconds before the
// speed-of-light multiplication.
func PhysicalLimitRange(sortedRttsMs []float32) (rMin, rMax float64) {
	if len(sortedRttsMs) == 0 {
		return 0, math.Inf(1)
	}
	minRttSeconds := float64(sortedRttsMs[0]) / 1000.0
	return 0, speedOfLightTwoThirds * minRttSeconds / 2.0
}

// MinRtt is a small shared helper: the minimum of a sorted ascending RTT
// series (sorting is guaranteed by BatchPreprocessor).
func MinRtt(sortedRttsMs []float32) float64 {
	if len(sortedRttsMs) == 0 {
		return math.Inf(1)
	}
	return float64(sortedRttsMs[0])
}

// variantEntry holds one variant's calibration data: either a single
// pooled-global instance, or a per-landmark map keyed by whichever
// identity the calibration tool indexed on.
type variantEntry struct {
	Pooled bool
	Global Calibration
	ByKey  map[string]Calibration
}

// Store is the immutable, shared-read-only calibration artifact loaded
// once per run.
type Store struct {
	variants map[string]variantEntry
}

const (
	keyPrefixIP     = "ip:"
	keyPrefixLabel  = "label:"
	keyPrefixILabel = "ilabel:"
)

// Lookup returns the calibration for landmark l under variant v, and
// whether one was found, per §4.4's lookup priority: ipv4, then label,
// then numeric sub-label; pooled-global variants always return the single
// global instance.
func (s *Store) Lookup(v domain.CalibrationVariant, l domain.LandmarkPosition) (Calibration, bool) {
	entry, ok := s.variants[v.Tag]
	if !ok {
		return Calibration{}, false
	}
	if entry.Pooled {
		return entry.Global, true
	}
	if c, ok := entry.ByKey[keyPrefixIP+l.IPv4.String()]; ok {
		return c, true
	}
	if c, ok := entry.ByKey[keyPrefixLabel+l.Label]; ok {
		return c, true
	}
	if l.ILabel >= 0 {
		if c, ok := entry.ByKey[keyPrefixILabel+itoa(l.ILabel)]; ok {
			return c, true
		}
	}
	return Calibration{}, false
}

// NewPooledStore builds a Store with a single pooled-global calibration
// per variant, keyed by tag. It is used by tests and by any caller that
// only needs the pooled Spotter variants without a per-landmark fit.
func NewPooledStore(byTag map[string]Calibration) *Store {
	variants := make(map[string]variantEntry, len(byTag))
	for tag, cal := range byTag {
		variants[tag] = variantEntry{Pooled: true, Global: cal}
	}
	return &Store{variants: variants}
}

// HasVariant reports whether the store carries any data for v at all.
func (s *Store) HasVariant(v domain.CalibrationVariant) bool {
	_, ok := s.variants[v.Tag]
	return ok
}

func itoa(n int) string {
	// avoids importing strconv solely for this; n is always small and
	// non-negative here (ILabel sentinel -1 is checked by the caller).
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 4)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// sortRtts returns a copy of rtts sorted ascending; BatchPreprocessor is
// responsible for doing this once per series, this helper exists for
// tests and for any caller that receives an unsorted slice.
func sortRtts(rtts []float32) []float32 {
	out := append([]float32(nil), rtts...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// On-disk artifact format: a zstd-compressed gob encoding of a flat list
// of (variant tag, optional landmark key, calibration) triples. The
// calibration tool that produces this file is outside this module's
// scope; Load only needs to be able to read what it writes.
type onDiskCalibration struct {
	Kind  int
	M, B  float64
	Sigma float64
}

type onDiskEntry struct {
	VariantTag string
	Pooled     bool
	// Key is empty for pooled entries; otherwise one of "ip:<addr>",
	// "label:<label>", or "ilabel:<n>", matching the Store lookup keys.
	Key string
	Cal onDiskCalibration
}

type onDiskArtifact struct {
	Entries []onDiskEntry
}

// Load reads a zstd-compressed gob-encoded calibration artifact from
// path and builds an in-memory Store from it.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read calibration file %q: %v", apperr.ErrIO, path, err)
	}

	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd reader for %q: %v", apperr.ErrIO, path, err)
	}
	defer zr.Close()

	var artifact onDiskArtifact
	if err := gob.NewDecoder(zr).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: decode calibration artifact %q: %v", apperr.ErrData, path, err)
	}

	store := &Store{variants: make(map[string]variantEntry)}
	for _, e := range artifact.Entries {
		cal := Calibration{Kind: domain.ModelKind(e.Cal.Kind), M: e.Cal.M, B: e.Cal.B, Sigma: e.Cal.Sigma}

		entry, ok := store.variants[e.VariantTag]
		if !ok {
			entry = variantEntry{Pooled: e.Pooled, ByKey: make(map[string]Calibration)}
		}
		if e.Pooled {
			entry.Pooled = true
			entry.Global = cal
		} else {
			entry.ByKey[e.Key] = cal
		}
		store.variants[e.VariantTag] = entry
	}

	return store, nil
}
