// Package region implements RegionAlgebra: closed-set polygon operations
// over spherical-lon/lat polygons, grounded on
// github.com/peterstace/simplefeatures/geom for the boolean set algebra and
// github.com/paulmach/orb/geojson for the on-disk representation of
// published regions.
package region

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeojson "github.com/paulmach/orb/geojson"
	"github.com/peterstace/simplefeatures/geom"

	apperr "github.com/location-microservice/internal/pkg/errors"
)

// VertexTolerance is the per-vertex agreement (in degrees) below which two
// polygons are considered "almost equal" (~1km at the equator).
const VertexTolerance = 0.01

// Bounds of the map rectangle every published Region is restricted to.
const (
	MapMinLon = -179.9
	MapMaxLon = 179.9
	MapMinLat = -60.0
	MapMaxLat = 85.0
)

// Region is a possibly multi-part polygon in lon/lat. The constructors and
// algebra operations do not clip to the map rectangle; DiskBuilder and
// LoadBaseMap intersect their results with MapRectangle.
type Region struct {
	g geom.Geometry
}

// Empty is the empty region.
var Empty = Region{g: geom.Polygon{}.AsGeometry()}

// NewFromRing builds a Region from a single closed ring of (lon, lat)
// vertices (no holes). Used by DiskBuilder for disk polygons.
func NewFromRing(ring [][2]float64) (Region, error) {
	poly, err := polygonFromRings(ring, nil)
	if err != nil {
		return Empty, err
	}
	return Region{g: poly.AsGeometry()}, nil
}

// NewFromRings builds a Region from several independent closed rings (no
// mutual holes), used by DiskBuilder's antimeridian two-crossing split.
func NewFromRings(rings [][][2]float64) (Region, error) {
	if len(rings) == 0 {
		return Empty, nil
	}
	if len(rings) == 1 {
		return NewFromRing(rings[0])
	}
	polys := make([]geom.Polygon, 0, len(rings))
	for _, r := range rings {
		p, err := polygonFromRings(r, nil)
		if err != nil {
			return Empty, err
		}
		polys = append(polys, p)
	}
	mp, err := geom.NewMultiPolygon(polys)
	if err != nil {
		return Empty, fmt.Errorf("%w: %v", apperr.ErrNumericDomain, err)
	}
	return Region{g: mp.AsGeometry()}, nil
}

// Rectangle builds an axis-aligned rectangle region with the given bounds.
func Rectangle(minLon, minLat, maxLon, maxLat float64) (Region, error) {
	return NewFromRing([][2]float64{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	})
}

// MapRectangle is the bounding rectangle every published Region lives in.
func MapRectangle() Region {
	r, err := Rectangle(MapMinLon, MapMinLat, MapMaxLon, MapMaxLat)
	if err != nil {
		panic("region: map rectangle must always be constructible: " + err.Error())
	}
	return r
}

// IsEmpty reports whether the region contains no points.
func (r Region) IsEmpty() bool {
	return r.g.IsEmpty()
}

// Area is the area in square degrees (only used for tie-breaking, so no
// equal-area projection is needed).
func (r Region) Area() float64 {
	return r.g.Area()
}

// Contains reports whether (lon, lat) lies within the region, including its
// boundary.
func (r Region) Contains(lon, lat float64) bool {
	pt := geom.NewPoint(geom.XY{X: lon, Y: lat})
	return geom.Intersects(pt.AsGeometry(), r.g)
}

// Intersection returns the set intersection of two regions.
func (r Region) Intersection(other Region) (Region, error) {
	g, err := geom.Intersection(r.g, other.g)
	if err != nil {
		return Empty, fmt.Errorf("%w: intersection: %v", apperr.ErrNumericDomain, err)
	}
	return Region{g: g}, nil
}

// Difference returns the set difference r \ other.
func (r Region) Difference(other Region) (Region, error) {
	g, err := geom.Difference(r.g, other.g)
	if err != nil {
		return Empty, fmt.Errorf("%w: difference: %v", apperr.ErrNumericDomain, err)
	}
	return Region{g: g}, nil
}

// Union returns the set union of two regions.
func (r Region) Union(other Region) (Region, error) {
	g, err := geom.Union(r.g, other.g)
	if err != nil {
		return Empty, fmt.Errorf("%w: union: %v", apperr.ErrNumericDomain, err)
	}
	return Region{g: g}, nil
}

// Intersects reports whether the two regions share any point.
func (r Region) Intersects(other Region) bool {
	return geom.Intersects(r.g, other.g)
}

// Repair re-nodes the region by unioning it with itself (the self-union
// re-noding idiom), whatever validation it was built with.
func (r Region) Repair() (Region, error) {
	fixed, err := geom.Union(r.g, r.g)
	if err != nil {
		return Empty, fmt.Errorf("%w: repair: %v", apperr.ErrNumericDomain, err)
	}
	return Region{g: fixed}, nil
}

// AlmostEqual reports whether two regions are equal to within
// VertexTolerance, approximated as: the area of their symmetric difference
// is small relative to a band of width VertexTolerance around their
// combined perimeter. This captures "same shape, vertices nudged by ~1km"
// without requiring the two geometries to have matching vertex counts.
func (r Region) AlmostEqual(other Region) bool {
	symDiff, err := r.symmetricDifferenceArea(other)
	if err != nil {
		return false
	}
	perim := r.perimeterEstimate() + other.perimeterEstimate()
	band := perim * VertexTolerance
	if band == 0 {
		return symDiff == 0
	}
	return symDiff <= band
}

func (r Region) symmetricDifferenceArea(other Region) (float64, error) {
	ab, err := geom.Difference(r.g, other.g)
	if err != nil {
		return 0, err
	}
	ba, err := geom.Difference(other.g, r.g)
	if err != nil {
		return 0, err
	}
	return ab.Area() + ba.Area(), nil
}

// perimeterEstimate approximates perimeter from area assuming a roughly
// circular shape (2*sqrt(pi*area)); it only sizes AlmostEqual's tolerance
// band.
func (r Region) perimeterEstimate() float64 {
	a := r.Area()
	if a <= 0 {
		return 0
	}
	return 2 * math.Sqrt(math.Pi*a)
}

// ToGeoJSONFeature serializes the region as a GeoJSON Feature with the
// given properties, the format any common GIS library can open.
func (r Region) ToGeoJSONFeature(properties map[string]interface{}) (*orbgeojson.Feature, error) {
	g, err := toOrbGeometry(r.g)
	if err != nil {
		return nil, err
	}
	f := orbgeojson.NewFeature(g)
	for k, v := range properties {
		f.Properties[k] = v
	}
	return f, nil
}

func toOrbGeometry(g geom.Geometry) (orb.Geometry, error) {
	switch {
	case g.IsEmpty():
		return orb.MultiPolygon{}, nil
	case g.IsPolygon():
		return polygonToOrb(g.AsPolygon()), nil
	case g.IsMultiPolygon():
		mp := g.AsMultiPolygon()
		out := make(orb.MultiPolygon, mp.NumPolygons())
		for i := 0; i < mp.NumPolygons(); i++ {
			out[i] = polygonToOrb(mp.PolygonN(i))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: region geometry is neither polygon nor multipolygon", apperr.ErrNumericDomain)
	}
}

func polygonToOrb(p geom.Polygon) orb.Polygon {
	rings := make(orb.Polygon, 0, p.NumRings())
	for i := 0; i < p.NumRings(); i++ {
		ring := p.RingN(i)
		seq := ring.Coordinates()
		n := seq.Length()
		r := make(orb.Ring, n)
		for j := 0; j < n; j++ {
			xy := seq.GetXY(j)
			r[j] = orb.Point{xy.X, xy.Y}
		}
		rings = append(rings, r)
	}
	return rings
}
