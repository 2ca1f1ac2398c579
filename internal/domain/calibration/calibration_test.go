package calibration

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/location-microservice/internal/domain"
)

func TestRangeMinMaxModel(t *testing.T) {
	c := Calibration{Kind: domain.ModelCBG, M: 100_000, B: 5_000}
	rMin, rMax := c.Range([]float32{10, 20, 30})
	assert.Equal(t, 0.0, rMin)
	assert.InDelta(t, 1_005_000, rMax, 1e-6)
}

func TestRangeMinMaxModelClampsNegative(t *testing.T) {
	c := Calibration{Kind: domain.ModelOctant, M: 1, B: -1000}
	_, rMax := c.Range([]float32{1})
	assert.Equal(t, 0.0, rMax)
}

func TestRangeGaussianModel(t *testing.T) {
	c := Calibration{Kind: domain.ModelSpotterGaussian, M: 100_000, B: 0, Sigma: 10_000}
	rMin, rMax := c.Range([]float32{10})
	mean := 1_000_000.0
	assert.InDelta(t, mean-gaussian90PctZ*10_000, rMin, 1e-6)
	assert.InDelta(t, mean+gaussian90PctZ*10_000, rMax, 1e-6)
	assert.Greater(t, rMax, rMin)
}

func TestRangeEmptySeriesIsUnbounded(t *testing.T) {
	c := Calibration{Kind: domain.ModelCBG}
	rMin, rMax := c.Range(nil)
	assert.Equal(t, 0.0, rMin)
	assert.True(t, rMax > 1e300)
}

func TestPhysicalLimitRange(t *testing.T) {
	rMin, rMax := PhysicalLimitRange([]float32{20})
	assert.Equal(t, 0.0, rMin)
	// minrtt 20ms -> 0.01s one-way, times 2/3 c.
	assert.InDelta(t, speedOfLightTwoThirds*0.01, rMax, 1e-3)
}

func TestStoreLookupPriorityIPOverLabel(t *testing.T) {
	store := &Store{variants: map[string]variantEntry{
		"cbg-m-1": {
			ByKey: map[string]Calibration{
				"ip:203.0.113.5": {Kind: domain.ModelCBG, M: 1, B: 1},
				"label:lga-03":   {Kind: domain.ModelCBG, M: 2, B: 2},
			},
		},
	}}
	l := domain.LandmarkPosition{IPv4: net.ParseIP("203.0.113.5"), Label: "lga-03", ILabel: 3}
	c, ok := store.Lookup(domain.VariantCBG, l)
	assert.True(t, ok)
	assert.Equal(t, 1.0, c.M)
}

func TestStoreLookupFallsBackToLabelThenILabel(t *testing.T) {
	store := &Store{variants: map[string]variantEntry{
		"cbg-m-1": {
			ByKey: map[string]Calibration{
				"ilabel:3": {Kind: domain.ModelCBG, M: 9, B: 9},
			},
		},
	}}
	l := domain.LandmarkPosition{IPv4: net.ParseIP("198.51.100.1"), Label: "unmatched", ILabel: 3}
	c, ok := store.Lookup(domain.VariantCBG, l)
	assert.True(t, ok)
	assert.Equal(t, 9.0, c.M)
}

func TestStoreLookupPooledIgnoresLandmarkIdentity(t *testing.T) {
	store := &Store{variants: map[string]variantEntry{
		"spo-m-a": {Pooled: true, Global: Calibration{Kind: domain.ModelSpotterUniform, M: 7, B: 3}},
	}}
	l := domain.LandmarkPosition{IPv4: net.ParseIP("1.2.3.4"), Label: "whatever", ILabel: -1}
	c, ok := store.Lookup(domain.VariantSpotterUniform, l)
	assert.True(t, ok)
	assert.Equal(t, 7.0, c.M)
}

func TestStoreLookupMissingVariantReturnsFalse(t *testing.T) {
	store := &Store{variants: map[string]variantEntry{}}
	l := domain.LandmarkPosition{IPv4: net.ParseIP("1.2.3.4"), Label: "x", ILabel: -1}
	_, ok := store.Lookup(domain.VariantCBG, l)
	assert.False(t, ok)
}

func TestStoreHasVariant(t *testing.T) {
	store := &Store{variants: map[string]variantEntry{"cbg-m-1": {Pooled: true}}}
	assert.True(t, store.HasVariant(domain.VariantCBG))
	assert.False(t, store.HasVariant(domain.VariantOctant))
}

func TestItoaSmallValues(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "7", itoa(7))
	assert.Equal(t, "42", itoa(42))
}

func TestSortRttsAscending(t *testing.T) {
	out := sortRtts([]float32{30, 10, 20})
	assert.Equal(t, []float32{10, 20, 30}, out)
}
