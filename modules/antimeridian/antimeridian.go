package antimeridian

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Antimeridian seam handling
//
// A footprint that crosses the ±180° meridian is stored with vertices on both
// ends of the longitude range. Drawn as is, its edges wrap around the whole
// map. Split unwraps the ring twice, once onto each side of the seam, adds
// vertices where edges meet the seam and drops what lies past it.

// DefaultSeamThreshold is the longitude gap above which two vertices of a
// ring are considered to be on opposite sides of the seam. It tolerates
// footprints up to 60° wide.
const DefaultSeamThreshold = 300.0

const seamLongitude = 180.0

// CrossesSeam reports whether two vertices of ring are at least threshold
// degrees of longitude apart.
func CrossesSeam(ring orb.Ring, threshold float64) bool {
	for i := 0; i < len(ring); i++ {
		for j := i + 1; j < len(ring); j++ {
			if math.Abs(ring[i][0]-ring[j][0]) >= threshold {
				return true
			}
		}
	}
	return false
}

// EdgeCrossesSeam reports whether exactly one of the two vertices lies past
// the seam. A vertex right on the seam is not past it.
func EdgeCrossesSeam(v1, v2 orb.Point) bool {
	return (math.Abs(v1[0]) > seamLongitude) != (math.Abs(v2[0]) > seamLongitude)
}

// Split cuts ring along the seam and returns the part west of it (longitudes
// in [-180, 0]) and the part east of it (longitudes in [0, 180]). Both rings
// are closed. A side that the ring only touches along the seam has no area
// and is returned as nil.
func Split(ring orb.Ring) (west orb.Ring, east orb.Ring, err error) {
	if err := models.ValidateRing(ring); err != nil {
		return nil, nil, err
	}
	ring = models.CloseRing(models.CloneRing(ring))

	west = make(orb.Ring, 0, len(ring))
	east = make(orb.Ring, 0, len(ring))
	for _, v := range ring {
		if v[0] > 0 {
			east = append(east, v)
			west = append(west, orb.Point{v[0] - 360, v[1]})
		} else {
			west = append(west, v)
			east = append(east, orb.Point{v[0] + 360, v[1]})
		}
	}

	if west, err = trim(west); err != nil {
		return nil, nil, errors.New("trimming west ring failed").
			WithType(models.ErrTypeMalformedRing).
			Wrap(err)
	}
	if east, err = trim(east); err != nil {
		return nil, nil, errors.New("trimming east ring failed").
			WithType(models.ErrTypeMalformedRing).
			Wrap(err)
	}
	if west == nil && east == nil {
		return nil, nil, errors.New("ring has no area on either side of the seam").
			WithType(models.ErrTypeMalformedRing).
			WithTag("vertices", len(ring))
	}
	return west, east, nil
}

// trim inserts a vertex where each edge meets the seam, removes the vertices
// past the seam and closes the result. It returns nil when nothing with an
// area is left.
func trim(ring orb.Ring) (orb.Ring, error) {
	withSeam := make(orb.Ring, 0, len(ring)+4)

	for i := range ring {
		withSeam = append(withSeam, ring[i])
		if i+1 >= len(ring) || !EdgeCrossesSeam(ring[i], ring[i+1]) {
			continue
		}

		v, err := seamVertex(ring[i], ring[i+1])
		if err != nil {
			return nil, errors.New("computing seam vertex failed").
				WithType(models.ErrTypeMalformedRing).
				WithTag("index", i).
				Wrap(err)
		}
		if v != ring[i] && v != ring[i+1] {
			withSeam = append(withSeam, v)
		}
	}

	trimmed := make(orb.Ring, 0, len(withSeam)+1)
	for _, v := range withSeam {
		if math.Abs(v[0]) <= seamLongitude {
			trimmed = append(trimmed, v)
		}
	}
	trimmed = models.CloseRing(trimmed)

	if len(trimmed) < models.MinRingVertices || planar.Area(trimmed) == 0 {
		return nil, nil
	}
	if err := models.ValidateRing(trimmed); err != nil {
		return nil, err
	}
	return trimmed, nil
}

// seamVertex returns the point where the edge from v1 to v2 meets the seam on
// the side of v1.
func seamVertex(v1, v2 orb.Point) (orb.Point, error) {
	x1, y1 := v1[0], v1[1]
	x2, y2 := v2[0], v2[1]

	if x1 == x2 {
		return orb.Point{}, errors.New("seam crossing edge has no longitude extent").
			WithType(models.ErrTypeMalformedRing).
			WithTag("longitude", x1)
	}

	slope := (y1 - y2) / (x1 - x2)

	seam := -seamLongitude
	if x1 > 0 {
		seam = seamLongitude
	}
	return orb.Point{seam, y1 + slope*(seam-x1)}, nil
}
