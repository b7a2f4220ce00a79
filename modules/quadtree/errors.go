package quadtree

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
)

// LeafError reports a leaf whose records could not be merged. Records are
// the records the leaf held, unmodified.
type LeafError struct {
	TopLeft orb.Point
	Width   float64
	Height  float64
	Records []*models.Record
	Err     error
}

func (e LeafError) Error() string {
	return fmt.Sprintf("leaf at %v (%gx%g) with %d record(s): %s", e.TopLeft, e.Width, e.Height, len(e.Records), e.Err)
}

func (e LeafError) Unwrap() error {
	return e.Err
}

// SplitError lists the leaves that could not be merged during a split, from
// north west to south east.
type SplitError struct {
	Leaves []LeafError
}

func (e *SplitError) Error() string {
	if len(e.Leaves) == 1 {
		return e.Leaves[0].Error()
	}
	return fmt.Sprintf("%d leaves could not be merged, first: %s", len(e.Leaves), e.Leaves[0].Error())
}

// leafFailures collects the leaf errors of a split. Children split
// concurrently share it.
type leafFailures struct {
	mutex  sync.Mutex
	leaves []LeafError
}

func (f *leafFailures) add(err LeafError) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.leaves = append(f.leaves, err)
}

func (f *leafFailures) err() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if len(f.leaves) == 0 {
		return nil
	}

	slices.SortFunc(f.leaves, func(a, b LeafError) int {
		if c := cmp.Compare(b.TopLeft[1], a.TopLeft[1]); c != 0 {
			return c
		}
		return cmp.Compare(a.TopLeft[0], b.TopLeft[0])
	})
	return &SplitError{Leaves: f.leaves}
}
