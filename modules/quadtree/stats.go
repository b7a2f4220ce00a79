package quadtree

// Stats describes the shape of a tree.
type Stats struct {
	Nodes       int
	Leaves      int
	EmptyLeaves int
	Records     int
	MaxDepth    int

	// The number of records held by each non empty leaf, in quadrant
	// order.
	Occupancy []int
}

// Stats walks the tree and returns its shape.
func (n *Node) Stats() Stats {
	var s Stats
	n.Walk(func(n *Node, depth int) {
		s.Nodes++
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}

		leaf, ok := n.Content.(Leaf)
		if !ok {
			return
		}

		s.Leaves++
		if len(leaf) == 0 {
			s.EmptyLeaves++
			return
		}
		s.Records += len(leaf)
		s.Occupancy = append(s.Occupancy, len(leaf))
	})
	return s
}
