package models

import (
	"maps"
	"slices"

	"github.com/paulmach/orb"
)

// GranuleNameKey is the attribute that names the granule a footprint was
// imaged in.
const GranuleNameKey = "granule_name"

// Attributes is a snapshot of the non geometry columns of a footprint. Once
// captured as an ancestor, a snapshot is never mutated and can be shared
// between records.
type Attributes map[string]any

// Record is a footprint polygon with its attributes and the lineage of the
// records that were merged into it.
//
// A record is either raw (Properties set, no ancestors) or standardized
// (Properties cleared, Ancestors holding every folded-in snapshot).
type Record struct {
	Properties Attributes
	Ring       orb.Ring
	Ancestors  []Attributes

	standardized bool
}

// NewRecord returns a raw record.
func NewRecord(props Attributes, ring orb.Ring) *Record {
	return &Record{
		Properties: props,
		Ring:       ring,
	}
}

// NewStandardizedRecord returns a record that is already in standardized form,
// typically read back from a previous run output.
func NewStandardizedRecord(ring orb.Ring, ancestors []Attributes) *Record {
	if ancestors == nil {
		ancestors = []Attributes{}
	}
	return &Record{
		Ring:         ring,
		Ancestors:    ancestors,
		standardized: true,
	}
}

// IsStandardized reports whether the record only carries geometry and
// ancestors.
func (r *Record) IsStandardized() bool {
	return r.standardized
}

// Standardize moves the record properties into its ancestors. It does nothing
// on a record that is already standardized.
func (r *Record) Standardize() {
	if r.standardized {
		return
	}

	snapshot := maps.Clone(r.Properties)
	if snapshot == nil {
		snapshot = Attributes{}
	}

	r.Ancestors = append(r.Ancestors, snapshot)
	r.Properties = nil
	r.standardized = true
}

// AncestorSnapshots returns the snapshots the record contributes when it is
// folded into another record.
func (r *Record) AncestorSnapshots() []Attributes {
	if r.standardized {
		return r.Ancestors
	}

	snapshot := maps.Clone(r.Properties)
	if snapshot == nil {
		snapshot = Attributes{}
	}
	return []Attributes{snapshot}
}

// Absorb standardizes r, appends the lineage of other to it and replaces its
// geometry with ring.
func (r *Record) Absorb(other *Record, ring orb.Ring) {
	r.Standardize()
	r.Ancestors = append(r.Ancestors, other.AncestorSnapshots()...)
	r.Ring = ring
}

// WithRing returns a copy of the record that carries ring instead of the
// current geometry.
func (r *Record) WithRing(ring orb.Ring) *Record {
	return &Record{
		Properties:   r.Properties,
		Ring:         ring,
		Ancestors:    slices.Clone(r.Ancestors),
		standardized: r.standardized,
	}
}

// Centroid returns the planar centroid of the record geometry.
func (r *Record) Centroid() orb.Point {
	return Centroid(r.Ring)
}

// Property returns the value of a raw property, or of the first ancestor that
// has it when the record is standardized.
func (r *Record) Property(key string) (any, bool) {
	if v, ok := r.Properties[key]; ok {
		return v, true
	}
	for _, a := range r.Ancestors {
		if v, ok := a[key]; ok {
			return v, true
		}
	}
	return nil, false
}
