// Package geodesic provides forward/inverse geodesic computations on the
// WGS-84 ellipsoid and an ellipsoidal azimuthal-equidistant projection built
// on top of them, grounded on github.com/tidwall/geodesic_cgo's port of
// Karney's geodesic routines.
package geodesic

import (
	"fmt"
	"math"

	geo "github.com/tidwall/geodesic_cgo"

	apperr "github.com/location-microservice/internal/pkg/errors"
)

// Kit wraps a single WGS-84 ellipsoid instance; it is stateless and safe
// for concurrent use by every worker.
type Kit struct {
	ellipsoid *geo.Ellipsoid
}

// New returns a Kit for the WGS-84 ellipsoid.
func New() *Kit {
	return &Kit{ellipsoid: geo.WGS84}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Direct solves the direct geodesic problem: given a starting point,
// azimuth, and distance, returns the resulting (lat, lon) in degrees.
func (k *Kit) Direct(lat0, lon0, azimuthDeg, distanceM float64) (lat, lon float64, err error) {
	if !finite(lat0, lon0, azimuthDeg, distanceM) {
		return 0, 0, fmt.Errorf("%w: non-finite direct() input", apperr.ErrNumericDomain)
	}
	k.ellipsoid.Direct(lat0, lon0, azimuthDeg, distanceM, &lat, &lon, nil)
	if !finite(lat, lon) {
		return 0, 0, fmt.Errorf("%w: direct() produced a non-finite result", apperr.ErrNumericDomain)
	}
	return lat, lon, nil
}

// Inverse solves the inverse geodesic problem: given two points, returns
// the distance in meters and the forward azimuth at point 1, in degrees.
func (k *Kit) Inverse(lat1, lon1, lat2, lon2 float64) (distanceM, azimuthDeg float64, err error) {
	if !finite(lat1, lon1, lat2, lon2) {
		return 0, 0, fmt.Errorf("%w: non-finite inverse() input", apperr.ErrNumericDomain)
	}
	k.ellipsoid.Inverse(lat1, lon1, lat2, lon2, &distanceM, &azimuthDeg, nil)
	if !finite(distanceM, azimuthDeg) {
		return 0, 0, fmt.Errorf("%w: inverse() produced a non-finite result", apperr.ErrNumericDomain)
	}
	return distanceM, azimuthDeg, nil
}

// AzimuthalEquidistant is an ellipsoidal azimuthal-equidistant projection
// centered at a fixed reference point, built from Direct/Inverse: it maps
// the neighbourhood of the reference point onto a plane where distance
// from the origin equals true geodesic distance from the reference point.
type AzimuthalEquidistant struct {
	kit          *Kit
	lat0, lon0   float64
}

// NewAzimuthalEquidistant centers a projection at (lat0, lon0).
func (k *Kit) NewAzimuthalEquidistant(lat0, lon0 float64) *AzimuthalEquidistant {
	return &AzimuthalEquidistant{kit: k, lat0: lat0, lon0: lon0}
}

// Forward projects (lat, lon) to planar (x, y) meters from the center,
// x pointing east and y pointing north at the center.
func (p *AzimuthalEquidistant) Forward(lat, lon float64) (x, y float64, err error) {
	dist, azimuth, err := p.kit.Inverse(p.lat0, p.lon0, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	rad := azimuth * math.Pi / 180
	x = dist * math.Sin(rad)
	y = dist * math.Cos(rad)
	return x, y, nil
}

// Inverse projects planar (x, y) meters back to (lat, lon) degrees.
func (p *AzimuthalEquidistant) Inverse(x, y float64) (lat, lon float64, err error) {
	if !finite(x, y) {
		return 0, 0, fmt.Errorf("%w: non-finite projection coordinates", apperr.ErrNumericDomain)
	}
	dist := math.Hypot(x, y)
	azimuth := math.Atan2(x, y) * 180 / math.Pi
	return p.kit.Direct(p.lat0, p.lon0, azimuth, dist)
}

// NormalizeLon wraps a longitude into (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	switch {
	case lon <= -180:
		lon += 360
	case lon > 180:
		lon -= 360
	}
	return lon
}
