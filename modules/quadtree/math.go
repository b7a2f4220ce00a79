package quadtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// PointsEqualWithEpsilon reports whether p and q are at most epsilon apart.
func PointsEqualWithEpsilon(p, q orb.Point, epsilon float64) bool {
	return planar.Distance(p, q) <= epsilon
}

// Normalize returns a closed copy of r with a canonical vertex order: counter
// clockwise, starting at the vertex with the smallest longitude (then
// latitude). Two rings describing the same polygon normalize to the same
// vertex sequence.
func Normalize(r orb.Ring) orb.Ring {
	open := models.CloneRing(r)
	if len(open) > 1 && open.Closed() {
		open = open[:len(open)-1]
	}
	if len(open) < 3 {
		return models.CloseRing(open)
	}

	if open.Orientation() == orb.CW {
		open.Reverse()
	}

	start := 0
	for i := 1; i < len(open); i++ {
		if lexLess(open[i], open[start]) {
			start = i
		}
	}

	normalized := make(orb.Ring, 0, len(open)+1)
	normalized = append(normalized, open[start:]...)
	normalized = append(normalized, open[:start]...)
	return models.CloseRing(normalized)
}

func lexLess(p, q orb.Point) bool {
	if p[0] != q[0] {
		return p[0] < q[0]
	}
	return p[1] < q[1]
}

// RingsWithinTolerance reports whether a and b have the same number of
// vertices and every pair of corresponding vertices is at most tolerance
// apart. The rings are compared as given.
func RingsWithinTolerance(a, b orb.Ring, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !PointsEqualWithEpsilon(a[i], b[i], tolerance) {
			return false
		}
	}
	return true
}

// Align returns a closed copy of r rotated to start at the vertex that
// minimizes the largest distance between corresponding vertices of ref and
// r. Both rings are expected to be normalized. r is returned as is when the
// rings have different vertex counts.
//
// Normalization picks the start vertex by exact comparison, so two rings a
// small perturbation apart can start at different corners. Aligning them
// first makes the comparison depend on distances only.
func Align(ref, r orb.Ring) orb.Ring {
	if len(ref) != len(r) || len(r) < 2 {
		return r
	}

	n := len(r) - 1
	best := 0
	bestDist := math.Inf(1)

	for k := 0; k < n; k++ {
		dist := 0.0
		for i := 0; i < n && dist < bestDist; i++ {
			dist = math.Max(dist, planar.Distance(ref[i], r[(i+k)%n]))
		}
		if dist < bestDist {
			best = k
			bestDist = dist
		}
	}

	aligned := make(orb.Ring, 0, n+1)
	aligned = append(aligned, r[best:n]...)
	aligned = append(aligned, r[:best]...)
	return models.CloseRing(aligned)
}

// TolerantEqual reports whether a and b describe the same polygon up to
// tolerance, regardless of their starting vertex and winding.
func TolerantEqual(a, b orb.Ring, tolerance float64) bool {
	ref := Normalize(a)
	return RingsWithinTolerance(ref, Align(ref, Normalize(b)), tolerance)
}

// AverageRings returns the ring whose vertices are the midpoints of the
// corresponding vertices of a and b. Both rings are expected to be
// normalized.
func AverageRings(a, b orb.Ring) (orb.Ring, error) {
	if len(a) != len(b) {
		return nil, errors.New("rings have different vertex counts").
			WithType(models.ErrTypeGeometryMismatch).
			WithTag("vertices_a", len(a)).
			WithTag("vertices_b", len(b))
	}

	avg := make(orb.Ring, len(a))
	for i := range a {
		avg[i] = orb.Point{
			(a[i][0] + b[i][0]) / 2,
			(a[i][1] + b[i][1]) / 2,
		}
	}
	return avg, nil
}
