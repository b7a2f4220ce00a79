package models

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MinRingVertices is the smallest closed ring: a triangle plus the closing
// vertex.
const MinRingVertices = 4

// ValidateRing checks that r is a usable polygon boundary. An unclosed ring is
// accepted when closing it would still give at least MinRingVertices vertices.
func ValidateRing(r orb.Ring) error {
	n := len(r)
	if !r.Closed() {
		n++
	}

	if n < MinRingVertices {
		return errors.New("ring has too few vertices").
			WithType(ErrTypeMalformedRing).
			WithTag("vertices", len(r)).
			WithTag("closed", r.Closed())
	}

	for i, p := range r {
		if !isFinite(p[0]) || !isFinite(p[1]) {
			return errors.New("ring has a non finite vertex").
				WithType(ErrTypeMalformedRing).
				WithTag("index", i)
		}
	}
	return nil
}

// CloseRing returns r with its first vertex appended when the ring is not
// closed. A closed ring is returned as is.
func CloseRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	return append(r, r[0])
}

// Centroid returns the planar centroid of the area enclosed by r. Rings with
// no area fall back to the centroid of their boundary.
func Centroid(r orb.Ring) orb.Point {
	c, _ := planar.CentroidArea(orb.Polygon{r})
	return c
}

// CloneRing returns a copy of r that shares no memory with it.
func CloneRing(r orb.Ring) orb.Ring {
	if r == nil {
		return nil
	}
	c := make(orb.Ring, len(r))
	copy(c, r)
	return c
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
