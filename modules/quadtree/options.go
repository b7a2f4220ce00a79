package quadtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
)

const (
	// DefaultMinCellSize is the side in degrees below which a node is no
	// longer subdivided.
	DefaultMinCellSize = 0.1

	// DefaultTolerance is the distance in degrees under which two vertices
	// are considered the same.
	DefaultTolerance = 0.1

	// DefaultParallelDepth is the depth down to which children are split
	// concurrently. It bounds the split to 4^depth goroutines.
	DefaultParallelDepth = 3
)

// Options configures a split.
type Options struct {
	// The vertex distance under which two rings are duplicates.
	Tolerance float64

	// The cell side at which subdivision stops.
	MinCellSize float64

	// The depth down to which children are split concurrently. Zero splits
	// sequentially.
	ParallelDepth int

	// Overrides the duplicate predicate of the merge engine.
	Match MatchFunc
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		MinCellSize:   DefaultMinCellSize,
		ParallelDepth: DefaultParallelDepth,
	}
}

func (o Options) engine() Engine {
	return Engine{
		Tolerance: o.Tolerance,
		Match:     o.Match,
	}
}

// Validate returns an error when the options cannot drive a split.
func (o Options) Validate() error {
	if err := validateTolerance(o.Tolerance); err != nil {
		return err
	}

	if size := o.MinCellSize; size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return errors.New("invalid min cell size").
			WithType(models.ErrTypeInvalidCellSize).
			WithTag("min_cell_size", o.MinCellSize)
	}
	return nil
}

func validateTolerance(tolerance float64) error {
	if tolerance <= 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return errors.New("invalid tolerance").
			WithType(models.ErrTypeInvalidTolerance).
			WithTag("tolerance", tolerance)
	}
	return nil
}
