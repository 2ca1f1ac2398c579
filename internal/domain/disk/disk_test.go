package disk

import (
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/location-microservice/internal/domain/geodesic"
)

func newBuilder() *Builder {
	return NewBuilder(geodesic.New())
}

func TestBuildContainsReferencePoint(t *testing.T) {
	b := newBuilder()
	cases := []struct{ lon, lat, radius float64 }{
		{-122.1, 37.4, 1_000_000},
		{2.3, 48.8, 50_000},
		{139.7, 35.6, 20_000_000},
		{0, 84, 2_000_000},
		{179.5, 10, 500_000},
		{-179.5, -10, 500_000},
	}
	for _, c := range cases {
		d, err := b.Build(c.lon, c.lat, c.radius)
		require.NoError(t, err, c)
		assert.True(t, d.Region.Contains(c.lon, c.lat), c)
	}
}

func TestFullEarthRadiusYieldsMapRectangle(t *testing.T) {
	b := newBuilder()
	d, err := b.Build(0, 0, FullEarthRadiusM+1)
	require.NoError(t, err)
	assert.True(t, d.Region.Contains(179, 84))
	assert.True(t, d.Region.Contains(-179, -59))
	assert.Equal(t, s2.FullCap(), d.Cap)
}

func TestFullEarthRadiusDiskMayOverlapAnything(t *testing.T) {
	b := newBuilder()
	full, err := b.Build(0, 0, FullEarthRadiusM+1)
	require.NoError(t, err)
	other, err := b.Build(100, -40, 50_000)
	require.NoError(t, err)
	assert.True(t, MayOverlap(full, other))
	assert.True(t, MayOverlap(other, full))
}

func TestTinyRadiusIsClampedAndNonEmpty(t *testing.T) {
	b := newBuilder()
	d, err := b.Build(10, 10, 1)
	require.NoError(t, err)
	assert.False(t, d.Region.IsEmpty())
	assert.Equal(t, MinRadiusM, d.RadiusM)
}

func TestPoleEnclosureDiversion(t *testing.T) {
	b := newBuilder()
	d, err := b.Build(0, 84, 2_000_000)
	require.NoError(t, err)
	// The disk must enclose the pole: every longitude near the top of the
	// map rectangle should be inside it.
	assert.True(t, d.Region.Contains(0, 84.5))
	assert.True(t, d.Region.Contains(170, 84.5))
	assert.True(t, d.Region.Contains(-170, 84.5))
}

func TestAntimeridianSplitOverlap(t *testing.T) {
	b := newBuilder()
	d1, err := b.Build(179.9, 10, 150_000)
	require.NoError(t, err)
	d2, err := b.Build(-179.9, 10, 150_000)
	require.NoError(t, err)

	overlap, err := d1.Region.Intersection(d2.Region)
	require.NoError(t, err)
	assert.False(t, overlap.IsEmpty())
}
