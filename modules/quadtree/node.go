package quadtree

import (
	"context"

	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Quad-tree spatial partition
//
// The tree covers the longitude/latitude plane. Records go to the node that
// contains their centroid. A node holding more than one record is split in
// four until it reaches the minimum cell size, then its records are merged.
// Duplicate footprints share a centroid up to the merge tolerance, so they
// end up in the same leaf.

// Quadrant positions of the children of a node.
const (
	NorthWest = iota
	NorthEast
	SouthEast
	SouthWest
)

// Content is what a node holds: either Children or a Leaf.
type Content interface {
	content()
}

// Children are the four quadrants of a split node, indexed by NorthWest,
// NorthEast, SouthEast and SouthWest.
type Children [4]*Node

// Leaf is the records of a node that is not split.
type Leaf []*models.Record

func (Children) content() {}
func (Leaf) content()     {}

// Node is an axis aligned cell of the tree. It covers longitudes
// [TopLeft.X, TopLeft.X+Width) and latitudes (TopLeft.Y-Height, TopLeft.Y].
type Node struct {
	TopLeft orb.Point
	Width   float64
	Height  float64
	Content Content
}

// NewIndex returns a root node that covers the whole globe and holds records.
func NewIndex(records []*models.Record) *Node {
	leaf := make(Leaf, len(records))
	copy(leaf, records)

	return &Node{
		TopLeft: orb.Point{-180, 90},
		Width:   360,
		Height:  180,
		Content: leaf,
	}
}

// Bound returns the area covered by the node.
func (n *Node) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{n.TopLeft[0], n.TopLeft[1] - n.Height},
		Max: orb.Point{n.TopLeft[0] + n.Width, n.TopLeft[1]},
	}
}

// Contains reports whether the centroid of rec is inside the node.
func (n *Node) Contains(rec *models.Record) bool {
	return n.ContainsPoint(rec.Centroid())
}

func (n *Node) ContainsPoint(p orb.Point) bool {
	return p[0] >= n.TopLeft[0] &&
		p[0] < n.TopLeft[0]+n.Width &&
		p[1] <= n.TopLeft[1] &&
		p[1] > n.TopLeft[1]-n.Height
}

// Quarter returns the four empty quadrants of the node.
func (n *Node) Quarter() Children {
	w := n.Width / 2
	h := n.Height / 2
	x := n.TopLeft[0]
	y := n.TopLeft[1]

	return Children{
		NorthWest: {TopLeft: orb.Point{x, y}, Width: w, Height: h, Content: Leaf{}},
		NorthEast: {TopLeft: orb.Point{x + w, y}, Width: w, Height: h, Content: Leaf{}},
		SouthEast: {TopLeft: orb.Point{x + w, y - h}, Width: w, Height: h, Content: Leaf{}},
		SouthWest: {TopLeft: orb.Point{x, y - h}, Width: w, Height: h, Content: Leaf{}},
	}
}

// quadrant returns the child that p falls in. It agrees with ContainsPoint
// for points inside the node and clamps the others to the nearest quadrant.
func (n *Node) quadrant(p orb.Point) int {
	east := p[0] >= n.TopLeft[0]+n.Width/2
	north := p[1] > n.TopLeft[1]-n.Height/2

	switch {
	case north && !east:
		return NorthWest
	case north:
		return NorthEast
	case east:
		return SouthEast
	default:
		return SouthWest
	}
}

// Split subdivides the node until every leaf holds at most one record or has
// reached the minimum cell size, then merges the records of each leaf. On
// return every record in the tree is standardized.
//
// A leaf whose records cannot be merged is emptied and reported in a
// *SplitError. The other leaves are still split and merged, so the tree is
// usable when the error is a *SplitError.
//
// Splitting an already split tree only merges the leaves again, which leaves
// them unchanged.
func (n *Node) Split(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	var failures leafFailures
	if err := n.split(ctx, opts, 0, &failures); err != nil {
		return err
	}
	return failures.err()
}

func (n *Node) split(ctx context.Context, opts Options, depth int, failures *leafFailures) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch content := n.Content.(type) {
	case Children:
		return n.splitChildren(ctx, opts, depth, failures)

	case Leaf:
		if len(content) > 1 && n.Width > opts.MinCellSize && n.Height > opts.MinCellSize {
			children := n.Quarter()
			for _, rec := range content {
				child := children[n.quadrant(rec.Centroid())]
				child.Content = append(child.Content.(Leaf), rec)
			}
			n.Content = children
			return n.splitChildren(ctx, opts, depth, failures)
		}

		merged, err := opts.engine().Merge(content)
		if err != nil {
			instrumentLeafError(err)
			failures.add(LeafError{
				TopLeft: n.TopLeft,
				Width:   n.Width,
				Height:  n.Height,
				Records: content,
				Err:     err,
			})
			n.Content = Leaf{}
			return nil
		}
		n.Content = Leaf(merged)
		return nil

	default:
		n.Content = Leaf{}
		return nil
	}
}

func (n *Node) splitChildren(ctx context.Context, opts Options, depth int, failures *leafFailures) error {
	children := n.Content.(Children)

	if depth >= opts.ParallelDepth {
		for _, child := range children {
			if err := child.split(ctx, opts, depth+1, failures); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, child := range children {
		g.Go(func() error {
			return child.split(ctx, opts, depth+1, failures)
		})
	}
	return g.Wait()
}

// Walk calls fn for the node and all its descendants, parents first and
// children in quadrant order.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(n *Node, depth int), depth int) {
	fn(n, depth)
	if children, ok := n.Content.(Children); ok {
		for _, child := range children {
			child.walk(fn, depth+1)
		}
	}
}

// Records returns the records of every leaf in depth first quadrant order.
func (n *Node) Records() []*models.Record {
	var records []*models.Record
	n.Walk(func(n *Node, depth int) {
		if leaf, ok := n.Content.(Leaf); ok {
			records = append(records, leaf...)
		}
	})
	return records
}

// Leaves returns the leaf nodes in depth first quadrant order.
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	n.Walk(func(n *Node, depth int) {
		if _, ok := n.Content.(Leaf); ok {
			leaves = append(leaves, n)
		}
	})
	return leaves
}

// Depth returns the number of levels below the node.
func (n *Node) Depth() int {
	deepest := 0
	n.Walk(func(n *Node, depth int) {
		if depth > deepest {
			deepest = depth
		}
	})
	return deepest
}
