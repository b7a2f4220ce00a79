package source

import (
	"context"
	"os"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONSource loads footprints from a GeoJSON FeatureCollection file.
type GeoJSONSource struct {
	Path string
}

func (s GeoJSONSource) Name() string {
	return "geojson"
}

func (s GeoJSONSource) Load(ctx context.Context) ([]*models.Record, error) {
	start := time.Now()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.New("reading geojson file failed").
			WithType(ErrTypeSourceUnavailable).
			WithTag("path", s.Path).
			Wrap(err)
	}

	records, err := DecodeFeatureCollection(data)
	if err != nil {
		return nil, errors.New("decoding geojson file failed").
			WithType(errors.Type(err)).
			WithTag("path", s.Path).
			Wrap(err)
	}

	instrumentLoad(s.Name(), len(records), start)
	logs.WithTag("source", s.Name()).
		WithTag("path", s.Path).
		WithTag("records", len(records)).
		WithTag("duration", time.Since(start)).
		Info("footprints loaded")
	return records, nil
}

// DecodeFeatureCollection returns the records described by a GeoJSON
// FeatureCollection. Features with an ancestors property are loaded as
// standardized records.
func DecodeFeatureCollection(data []byte) ([]*models.Record, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.New("invalid feature collection").
			WithType(ErrTypeInvalidFeature).
			Wrap(err)
	}

	var records []*models.Record
	for i, f := range fc.Features {
		if f.Geometry == nil {
			logs.WithTag("feature", i).Warn("skipping feature without geometry")
			continue
		}

		recs, ok := recordsFromGeometry(models.Attributes(f.Properties), f.Geometry)
		if !ok {
			logs.WithTag("feature", i).
				WithTag("geometry", f.Geometry.GeoJSONType()).
				Warn("skipping feature with a non polygonal geometry")
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}
