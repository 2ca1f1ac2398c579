package region

import (
	"fmt"

	shp "github.com/jonas-p/go-shp"

	apperr "github.com/location-microservice/internal/pkg/errors"
)

// BaseMap is the union polygon of all land minus major lakes and glaciated
// areas, clipped to the map rectangle, loaded once and shared read-only
// across workers.
type BaseMap struct {
	Region
}

// LoadBaseMap reads a land-polygon ESRI shapefile and returns it
// intersected with the map rectangle. Other vector formats are not read.
func LoadBaseMap(path string) (*BaseMap, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open base map %q: %v", apperr.ErrIO, path, err)
	}
	defer reader.Close()

	rect := MapRectangle()
	land := Empty
	first := true

	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		rings := ringsFromShpPolygon(poly)
		for _, ring := range rings {
			region, err := NewFromRing(ring)
			if err != nil {
				// A malformed ring in the source data shouldn't abort the
				// whole load; skip it and keep the rest of the land mass.
				continue
			}
			if first {
				land = region
				first = false
				continue
			}
			land, err = land.Union(region)
			if err != nil {
				continue
			}
		}
	}

	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("%w: read base map %q: %v", apperr.ErrIO, path, err)
	}

	clipped, err := land.Intersection(rect)
	if err != nil {
		return nil, fmt.Errorf("%w: clip base map to map rectangle: %v", apperr.ErrIO, err)
	}

	return &BaseMap{Region: clipped}, nil
}

// ringsFromShpPolygon splits a shapefile polygon's flat point/part arrays
// into one closed ring per part.
func ringsFromShpPolygon(p *shp.Polygon) [][][2]float64 {
	numParts := int(p.NumParts)
	numPoints := int(p.NumPoints)
	rings := make([][][2]float64, 0, numParts)

	for i := 0; i < numParts; i++ {
		start := int(p.Parts[i])
		end := numPoints
		if i+1 < numParts {
			end = int(p.Parts[i+1])
		}
		if end-start < 3 {
			continue
		}
		ring := make([][2]float64, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, [2]float64{p.Points[j].X, p.Points[j].Y})
		}
		rings = append(rings, ring)
	}
	return rings
}
