package source

import (
	"context"
	"maps"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
)

// Source loads the footprints a pipeline run works on.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]*models.Record, error)
}

// AncestorsKey is the property under which standardized footprints store
// their lineage.
const AncestorsKey = "ancestors"

// recordsFromGeometry returns one record per polygon of g. Only the exterior
// ring of each polygon is kept. Geometries that are not polygonal yield no
// record.
func recordsFromGeometry(props models.Attributes, g orb.Geometry) ([]*models.Record, bool) {
	var polygons []orb.Polygon

	switch g := g.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{g}
	case orb.MultiPolygon:
		polygons = g
	default:
		return nil, false
	}

	ancestors, standardized := ancestorsOf(props)

	records := make([]*models.Record, 0, len(polygons))
	for _, p := range polygons {
		if len(p) == 0 {
			continue
		}

		if standardized {
			records = append(records, models.NewStandardizedRecord(p[0], cloneAncestors(ancestors)))
			continue
		}
		records = append(records, models.NewRecord(maps.Clone(props), p[0]))
	}
	return records, true
}

func ancestorsOf(props models.Attributes) ([]models.Attributes, bool) {
	raw, ok := props[AncestorsKey].([]any)
	if !ok {
		return nil, false
	}

	ancestors := make([]models.Attributes, 0, len(raw))
	for _, a := range raw {
		switch a := a.(type) {
		case map[string]any:
			ancestors = append(ancestors, models.Attributes(a))
		case models.Attributes:
			ancestors = append(ancestors, a)
		default:
			logs.WithTag("ancestor", a).Warn("ignoring ancestor that is not an object")
		}
	}
	return ancestors, true
}

func cloneAncestors(ancestors []models.Attributes) []models.Attributes {
	c := make([]models.Attributes, len(ancestors))
	copy(c, ancestors)
	return c
}
