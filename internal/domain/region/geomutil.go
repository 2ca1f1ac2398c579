package region

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"

	apperr "github.com/location-microservice/internal/pkg/errors"
)

// ringFromLonLat builds a closed exterior-ring LineString from a sequence
// of (lon, lat) vertices, closing the ring if the caller didn't repeat the
// first point.
func ringFromLonLat(points [][2]float64) (geom.LineString, error) {
	if len(points) < 3 {
		return geom.LineString{}, fmt.Errorf("%w: ring needs at least 3 vertices, got %d", apperr.ErrNumericDomain, len(points))
	}
	if points[0] != points[len(points)-1] {
		points = append(append([][2]float64{}, points...), points[0])
	}

	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p[0], p[1])
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %v", apperr.ErrNumericDomain, err)
	}
	return ls, nil
}

// polygonFromRings builds a Polygon from an exterior ring and zero or more
// hole rings, retrying once with validation disabled and then re-noded via
// a self-union if the strict constructor rejects the input (the seam
// surgery in DiskBuilder can produce rings that barely self-touch at the
// poles).
func polygonFromRings(exterior [][2]float64, holes [][][2]float64) (geom.Polygon, error) {
	extLS, err := ringFromLonLat(exterior)
	if err != nil {
		return geom.Polygon{}, err
	}

	rings := []geom.LineString{extLS}
	for _, h := range holes {
		hLS, err := ringFromLonLat(h)
		if err != nil {
			return geom.Polygon{}, err
		}
		rings = append(rings, hLS)
	}

	poly, err := geom.NewPolygon(rings)
	if err == nil {
		return poly, nil
	}

	repaired, rerr := repairRings(rings)
	if rerr != nil {
		return geom.Polygon{}, fmt.Errorf("%w: polygon invalid and unrepairable: %v", apperr.ErrNumericDomain, err)
	}
	return repaired, nil
}

// repairRings rebuilds a polygon with validation disabled and then forces
// re-noding by unioning the geometry with itself, the same "self-union to
// fix minor self-touching" idiom used for MakeValid-style repairs.
func repairRings(rings []geom.LineString) (geom.Polygon, error) {
	loose, err := geom.NewPolygon(rings, geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}, err
	}
	g := loose.AsGeometry()
	fixed, err := geom.Union(g, g)
	if err != nil {
		return geom.Polygon{}, err
	}
	if fixed.IsPolygon() {
		return fixed.AsPolygon(), nil
	}
	return geom.Polygon{}, fmt.Errorf("self-union did not converge to a single polygon")
}
