package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
)

// MatchFunc reports whether two normalized and aligned rings are duplicates
// of each other.
type MatchFunc func(a, b orb.Ring, tolerance float64) bool

// Engine merges the duplicate records of a leaf.
type Engine struct {
	Tolerance float64

	// Defaults to RingsWithinTolerance.
	Match MatchFunc
}

// cluster is a group of records merged into its first member.
type cluster struct {
	ring    orb.Ring
	members []*models.Record
}

// Merge folds every record that matches an earlier one into it and returns
// the survivors, all standardized, in input order.
//
// The first remaining record is the merge target. Each later record that
// matches it is absorbed: the target geometry becomes the average of both and
// its ancestors grow by the lineage of the absorbed record. Records skipped
// before the target moved are scanned again until the target stops moving,
// then the next unmatched record becomes the target. Passes are repeated
// until one merges nothing, so no two returned records match.
//
// Records are only modified once every merge succeeded. On error the input
// is left untouched.
func (e Engine) Merge(records []*models.Record) ([]*models.Record, error) {
	if err := validateTolerance(e.Tolerance); err != nil {
		return nil, err
	}

	clusters := make([]*cluster, len(records))
	for i, rec := range records {
		clusters[i] = &cluster{
			ring:    Normalize(rec.Ring),
			members: []*models.Record{rec},
		}
	}

	for {
		merged, err := e.mergePass(clusters)
		if err != nil {
			return nil, err
		}
		if len(merged) == len(clusters) {
			break
		}
		clusters = merged
	}

	out := make([]*models.Record, 0, len(clusters))
	for _, c := range clusters {
		target := c.members[0]
		target.Standardize()

		if len(c.members) > 1 {
			for _, rec := range c.members[1:] {
				target.Absorb(rec, c.ring)
			}
			instrumentMerges(len(c.members) - 1)
		}
		out = append(out, target)
	}
	return out, nil
}

func (e Engine) mergePass(clusters []*cluster) ([]*cluster, error) {
	match := e.Match
	if match == nil {
		match = RingsWithinTolerance
	}

	out := make([]*cluster, 0, len(clusters))
	remaining := clusters

	for len(remaining) != 0 {
		target := &cluster{
			ring:    remaining[0].ring,
			members: append([]*models.Record(nil), remaining[0].members...),
		}
		remaining = remaining[1:]

		for moved := true; moved; {
			moved = false
			next := make([]*cluster, 0, len(remaining))

			for _, c := range remaining {
				ring := Align(target.ring, c.ring)
				if !match(target.ring, ring, e.Tolerance) {
					next = append(next, c)
					continue
				}

				avg, err := AverageRings(target.ring, ring)
				if err != nil {
					return nil, errors.New("averaging matching rings failed").
						WithType(errors.Type(err)).
						WithTag("target_vertices", len(target.ring)).
						WithTag("members", len(target.members)+len(c.members)).
						Wrap(err)
				}

				target.ring = avg
				target.members = append(target.members, c.members...)
				moved = true
			}
			remaining = next
		}

		out = append(out, target)
	}
	return out, nil
}

// Merge runs the default engine with tolerance over records.
func Merge(records []*models.Record, tolerance float64) ([]*models.Record, error) {
	return Engine{Tolerance: tolerance}.Merge(records)
}
