package constraint

import (
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/location-microservice/internal/domain"
	"github.com/location-microservice/internal/domain/calibration"
	"github.com/location-microservice/internal/domain/disk"
	"github.com/location-microservice/internal/domain/geodesic"
)

func newEngine() *Engine {
	return New(disk.NewBuilder(geodesic.New()), nil)
}

func TestBuildSkipsLandmarksWithoutSeries(t *testing.T) {
	e := newEngine()
	store := mustPooledStore(t)

	landmarks := []domain.LandmarkPosition{
		{IPv4: net.ParseIP("198.51.100.1"), Lon: 10, Lat: 10},
		{IPv4: net.ParseIP("198.51.100.2"), Lon: 20, Lat: 20},
	}
	series := map[string][]float32{
		"198.51.100.1": {10, 20},
	}

	res, err := e.Build(store, domain.VariantSpotterUniform, series, landmarks)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Empirical, 1)
	assert.Len(t, res.Physical, 1)
}

func TestBuildDisksContainLandmark(t *testing.T) {
	e := newEngine()
	store := mustPooledStore(t)

	landmarks := []domain.LandmarkPosition{
		{IPv4: net.ParseIP("198.51.100.1"), Lon: 10, Lat: 10},
	}
	series := map[string][]float32{
		"198.51.100.1": {10, 20},
	}

	res, err := e.Build(store, domain.VariantSpotterUniform, series, landmarks)
	require.NoError(t, err)
	require.Len(t, res.Empirical, 1)
	require.Len(t, res.Physical, 1)
	assert.True(t, res.Empirical[0].Region.Contains(10, 10))
	assert.True(t, res.Physical[0].Region.Contains(10, 10))
}

func TestBuildSkipsLandmarkWithDegenerateDiskInsteadOfFailingTask(t *testing.T) {
	e := newEngine()
	store := mustPooledStore(t)

	landmarks := []domain.LandmarkPosition{
		{IPv4: net.ParseIP("198.51.100.1"), Lon: math.NaN(), Lat: 10},
		{IPv4: net.ParseIP("198.51.100.2"), Lon: 20, Lat: 20},
	}
	series := map[string][]float32{
		"198.51.100.1": {10, 20},
		"198.51.100.2": {10, 20},
	}

	res, err := e.Build(store, domain.VariantSpotterUniform, series, landmarks)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Empirical, 1)
	assert.Len(t, res.Physical, 1)
}

func mustPooledStore(t *testing.T) *calibration.Store {
	t.Helper()
	return calibration.NewPooledStore(map[string]calibration.Calibration{
		domain.VariantSpotterUniform.Tag: {Kind: domain.ModelSpotterUniform, M: 100_000, B: 0},
	})
}
