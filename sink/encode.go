package sink

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
	"github.com/granulemap/granulemap/source"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Encode returns records as a GeoJSON FeatureCollection. Each feature has a
// polygon geometry, an ancestors property and an ID taken from ids.
func Encode(records []*models.Record, ids *models.FeatureIDGenerator) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	for _, rec := range records {
		f := geojson.NewFeature(orb.Polygon{rec.Ring})
		f.ID = ids.New()
		f.Properties[source.AncestorsKey] = rec.AncestorSnapshots()
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, errors.New("encoding feature collection failed").
			WithType(ErrTypeEncodeFailed).
			WithTag("records", len(records)).
			Wrap(err)
	}
	return data, nil
}
