package solve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/location-microservice/internal/domain/disk"
	"github.com/location-microservice/internal/domain/geodesic"
	"github.com/location-microservice/internal/domain/region"
)

func newTestBuilder() *disk.Builder {
	return disk.NewBuilder(geodesic.New())
}

func mustDisk(t *testing.T, b *disk.Builder, lon, lat, radiusM float64) disk.Disk {
	t.Helper()
	d, err := b.Build(lon, lat, radiusM)
	require.NoError(t, err)
	return d
}

func TestSolveAllDisksAgreeKeepsFullSubset(t *testing.T) {
	b := newTestBuilder()
	base := region.MapRectangle()

	physical := []disk.Disk{
		mustDisk(t, b, 0, 0, 2_000_000),
		mustDisk(t, b, 0.1, 0.1, 2_000_000),
	}
	empirical := []disk.Disk{
		mustDisk(t, b, 0, 0, 1_000_000),
		mustDisk(t, b, 0.1, 0.1, 1_000_000),
	}

	sol, err := Solve(physical, empirical, base)
	require.NoError(t, err)
	assert.False(t, sol.Region.IsEmpty())
	assert.Len(t, sol.Included, 2)
}

func TestSolveEmptyIntersectionOfAntipodalDisks(t *testing.T) {
	b := newTestBuilder()
	base := region.MapRectangle()

	physical := []disk.Disk{
		mustDisk(t, b, 0, 0, 100_000),
		mustDisk(t, b, 179.5, 0, 100_000),
	}
	empirical := []disk.Disk{
		mustDisk(t, b, 0, 0, 100_000),
		mustDisk(t, b, 179.5, 0, 100_000),
	}

	sol, err := Solve(physical, empirical, base)
	require.NoError(t, err)
	assert.True(t, sol.Region.IsEmpty())
}

func TestSolveOutlierIsDropped(t *testing.T) {
	b := newTestBuilder()
	base := region.MapRectangle()

	// Two agreeing disks near the origin, one wildly displaced outlier;
	// the solver should prefer the two-disk feasible subset.
	physical := []disk.Disk{
		mustDisk(t, b, 0, 0, 3_000_000),
		mustDisk(t, b, 0.2, 0.2, 3_000_000),
		mustDisk(t, b, -90, 0, 3_000_000),
	}
	empirical := []disk.Disk{
		mustDisk(t, b, 0, 0, 1_500_000),
		mustDisk(t, b, 0.2, 0.2, 1_500_000),
		mustDisk(t, b, -90, 0, 500_000),
	}

	sol, err := Solve(physical, empirical, base)
	require.NoError(t, err)
	assert.False(t, sol.Region.IsEmpty())
	assert.NotContains(t, sol.Included, 2)
}

func TestMaxSubsetIntersectionPrefersSmallerAreaOnTie(t *testing.T) {
	b := newTestBuilder()
	base := region.MapRectangle()

	// B and C each overlap A but lie ~30° apart, so they are disjoint from
	// each other and the best achievable cardinality is 2 ({A,B} or {A,C}).
	a := mustDisk(t, b, 0, 0, 2_000_000)
	bDisk := mustDisk(t, b, 15, 0, 600_000) // A∩B: smaller
	c := mustDisk(t, b, -15, 0, 900_000)    // A∩C: bigger

	regionAB, idxAB, err := maxSubsetIntersection([]disk.Disk{a, bDisk}, base)
	require.NoError(t, err)
	regionAC, idxAC, err := maxSubsetIntersection([]disk.Disk{a, c}, base)
	require.NoError(t, err)

	assert.Len(t, idxAB, 2)
	assert.Len(t, idxAC, 2)
	assert.Less(t, regionAB.Area(), regionAC.Area())

	regionABC, idxABC, err := maxSubsetIntersection([]disk.Disk{a, bDisk, c}, base)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, idxABC)
	assert.InDelta(t, regionAB.Area(), regionABC.Area(), 1e-9)
}

func TestMaxSubsetIntersectionEmptyDisksReturnsBase(t *testing.T) {
	base := region.MapRectangle()
	reg, included, err := maxSubsetIntersection(nil, base)
	require.NoError(t, err)
	assert.True(t, reg.Area() == base.Area())
	assert.Empty(t, included)
}
