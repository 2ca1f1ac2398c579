// Package disk implements DiskBuilder: given a reference point and a
// radius in meters, produces a closed polygon on the globe representing
// "all points within that radius", handling antimeridian crossings and
// polar enclosure.
package disk

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/location-microservice/internal/domain/geodesic"
	"github.com/location-microservice/internal/domain/region"
	apperr "github.com/location-microservice/internal/pkg/errors"
)

// earthRadiusM is used only to turn a planar radius into an s2 angular
// radius for the bounding-cap pre-filter; it is not used anywhere in the
// exact polygon construction.
const earthRadiusM = 6_371_008.8

const (
	// FullEarthRadiusM is the radius beyond which a disk covers the whole
	// map rectangle (~half the WGS-84 circumference).
	FullEarthRadiusM = 19_975_000.0

	// MinRadiusM is the smallest radius a disk is ever built at; smaller
	// circles collapse under the azimuthal-equidistant projection.
	MinRadiusM = 5_000.0

	ringPoints  = 60
	azimuthStep = 360.0 / ringPoints

	// PoleDiversionLat is the latitude a one-crossing (pole-enclosing)
	// ring is diverted to when closing the polygon.
	PoleDiversionLat = 85.0
)

// Disk is a constraint disk: a reference point, a radius, and the
// materialized polygon on the globe it corresponds to.
type Disk struct {
	RefLon, RefLat float64
	RadiusM        float64
	Region         region.Region

	// Cap is a spherical bounding cap used only as a cheap pre-filter by
	// FeasibleSubsetSolver before it falls back to the exact polygon
	// intersection; it is never a substitute for Region.
	Cap s2.Cap
}

// MayOverlap is a conservative (may over-approximate, never
// under-approximate) disjointness test: two disks that fail it can never
// have intersecting polygons, but passing it does not guarantee they do.
// FeasibleSubsetSolver uses it to skip exact polygon intersection for
// subsets it can already prove are disjoint.
func MayOverlap(a, b Disk) bool {
	angle := a.Cap.Center().Distance(b.Cap.Center())
	return angle <= a.Cap.Radius()+b.Cap.Radius()
}

// Builder builds Disks using a shared GeodesicKit.
type Builder struct {
	kit *geodesic.Kit
	mr  region.Region
}

// NewBuilder creates a Builder over the given GeodesicKit.
func NewBuilder(kit *geodesic.Kit) *Builder {
	return &Builder{kit: kit, mr: region.MapRectangle()}
}

// Build constructs the disk of the given radius around (refLon, refLat).
func (b *Builder) Build(refLon, refLat, radiusM float64) (Disk, error) {
	if math.IsNaN(refLon) || math.IsNaN(refLat) || math.IsNaN(radiusM) {
		return Disk{}, fmt.Errorf("%w: non-finite disk input", apperr.ErrNumericDomain)
	}

	if radiusM > FullEarthRadiusM {
		return Disk{RefLon: refLon, RefLat: refLat, RadiusM: radiusM, Region: b.mr, Cap: s2.FullCap()}, nil
	}
	if radiusM < MinRadiusM {
		radiusM = MinRadiusM
	}

	ring, err := b.sampleRing(refLon, refLat, radiusM)
	if err != nil {
		return Disk{}, err
	}

	reg, err := ringToRegion(ring)
	if err != nil {
		return Disk{}, err
	}

	if !reg.Contains(refLon, refLat) {
		reg, err = b.mr.Difference(reg)
		if err != nil {
			return Disk{}, fmt.Errorf("%w: complement of mis-oriented disk: %v", apperr.ErrNumericDomain, err)
		}
	}

	reg, err = reg.Intersection(b.mr)
	if err != nil {
		return Disk{}, fmt.Errorf("%w: clip disk to map rectangle: %v", apperr.ErrNumericDomain, err)
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(refLat, refLon))
	boundingCap := s2.CapFromCenterAngle(center, s1.Angle(radiusM/earthRadiusM))

	return Disk{RefLon: refLon, RefLat: refLat, RadiusM: radiusM, Region: reg, Cap: boundingCap}, nil
}

type vertex struct{ lon, lat float64 }

// sampleRing samples the circle of the given radius around the reference
// point as ringPoints vertices at azimuths 0, 6, ..., 354 degrees.
func (b *Builder) sampleRing(refLon, refLat, radiusM float64) ([]vertex, error) {
	ring := make([]vertex, ringPoints)
	for i := 0; i < ringPoints; i++ {
		azimuth := float64(i) * azimuthStep
		lat, lon, err := b.kit.Direct(refLat, refLon, azimuth, radiusM)
		if err != nil {
			return nil, err
		}
		ring[i] = vertex{lon: geodesic.NormalizeLon(lon), lat: lat}
	}
	return ring, nil
}

// ringToRegion applies the antimeridian-crossing policy of §4.2 to turn a
// sampled ring into a Region.
func ringToRegion(ring []vertex) (region.Region, error) {
	crossings := crossingIndices(ring)

	switch len(crossings) {
	case 0:
		return region.NewFromRing(toCoords(ring))
	case 1:
		return buildPoleEnclosure(ring, crossings[0])
	case 2:
		return buildSeamSplit(ring, crossings[0], crossings[1])
	default:
		return region.Empty, fmt.Errorf("%w: disk ring crosses the antimeridian %d times", apperr.ErrNumericDomain, len(crossings))
	}
}

// crossingIndices returns the indices i such that the edge (ring[i],
// ring[i+1 mod n]) crosses the antimeridian.
func crossingIndices(ring []vertex) []int {
	n := len(ring)
	var idx []int
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		if math.Abs(ring[j].lon-ring[i].lon) > 180 {
			idx = append(idx, i)
		}
	}
	return idx
}

// rotateAfter returns the ring rotated to start right after index c,
// wrapping around, ending at index c — the open arc with no internal
// antimeridian crossing when the original ring crossed exactly once at c.
func rotateAfter(ring []vertex, c int) []vertex {
	n := len(ring)
	out := make([]vertex, 0, n)
	for k := 1; k <= n; k++ {
		out = append(out, ring[(c+k)%n])
	}
	return out
}

func buildPoleEnclosure(ring []vertex, crossing int) (region.Region, error) {
	arc := rotateAfter(ring, crossing)

	sumLat := 0.0
	for _, v := range arc {
		sumLat += v.lat
	}
	poleLat := PoleDiversionLat
	if sumLat < 0 {
		poleLat = -PoleDiversionLat
	}

	start, end := arc[0], arc[len(arc)-1]

	coords := toCoords(arc)
	if start.lon < 0 {
		coords = append(coords, [2]float64{region.MapMaxLon, end.lat})
		coords = append(coords, [2]float64{region.MapMaxLon, poleLat})
		coords = append(coords, [2]float64{region.MapMinLon, poleLat})
		coords = append(coords, [2]float64{region.MapMinLon, start.lat})
	} else {
		coords = append(coords, [2]float64{region.MapMinLon, end.lat})
		coords = append(coords, [2]float64{region.MapMinLon, poleLat})
		coords = append(coords, [2]float64{region.MapMaxLon, poleLat})
		coords = append(coords, [2]float64{region.MapMaxLon, start.lat})
	}

	return region.NewFromRing(coords)
}

func buildSeamSplit(ring []vertex, c1, c2 int) (region.Region, error) {
	arcA := arcBetween(ring, c1, c2)
	arcB := arcBetween(ring, c2, c1)

	return region.NewFromRings([][][2]float64{
		closeAgainstSeam(arcA),
		closeAgainstSeam(arcB),
	})
}

// arcBetween returns the points strictly after index from up to and
// including index to, walking forward cyclically.
func arcBetween(ring []vertex, from, to int) []vertex {
	n := len(ring)
	var out []vertex
	for i := (from + 1) % n; ; i = (i + 1) % n {
		out = append(out, ring[i])
		if i == to {
			break
		}
	}
	return out
}

// closeAgainstSeam closes an arc that stays on one side of the antimeridian
// into the coordinate ring of a polygon hugging the ±180° edge.
func closeAgainstSeam(arc []vertex) [][2]float64 {
	sign := 1.0
	for _, v := range arc {
		if v.lon < 0 {
			sign = -1
			break
		}
	}
	edge := region.MapMaxLon * sign

	coords := toCoords(arc)
	last, first := arc[len(arc)-1], arc[0]
	coords = append(coords, [2]float64{edge, last.lat})
	coords = append(coords, [2]float64{edge, first.lat})

	return coords
}

func toCoords(vs []vertex) [][2]float64 {
	out := make([][2]float64, len(vs))
	for i, v := range vs {
		out[i] = [2]float64{v.lon, v.lat}
	}
	return out
}
