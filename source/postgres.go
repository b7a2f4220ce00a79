package source

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/models"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/encoding/wkb"
)

// Querier is the part of a pgx pool used to read granules.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// GranuleQuery selects the granules to load.
type GranuleQuery struct {
	Start         time.Time
	End           time.Time
	PlatformTypes []string
	GranuleTypes  []string
	ProductTypes  []string
}

// DefaultGranuleQuery returns the Sentinel-1 GRD frames of the first ten days
// of 2021.
func DefaultGranuleQuery() GranuleQuery {
	return GranuleQuery{
		Start:         time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC),
		PlatformTypes: []string{"SA", "SB"},
		GranuleTypes:  []string{"SENTINEL_1A_FRAME", "SENTINEL_1B_FRAME"},
		ProductTypes:  []string{"GRD"},
	}
}

// Validate returns an error when the query cannot select anything.
func (q GranuleQuery) Validate() error {
	if !q.End.After(q.Start) {
		return errors.New("granule query end is not after start").
			WithType(ErrTypeInvalidQuery).
			WithTag("start", q.Start).
			WithTag("end", q.End)
	}
	if len(q.PlatformTypes) == 0 || len(q.GranuleTypes) == 0 || len(q.ProductTypes) == 0 {
		return errors.New("granule query has an empty filter").
			WithType(ErrTypeInvalidQuery).
			WithTag("platform_types", q.PlatformTypes).
			WithTag("granule_types", q.GranuleTypes).
			WithTag("product_types", q.ProductTypes)
	}
	return nil
}

// The product type is the 3 letters at offset 7 of a Sentinel-1 granule
// name, e.g. S1A_IW_GRDH_1SDV_...
const granuleSQL = `SELECT to_jsonb(g) - 'shape', ST_AsBinary(g.shape)
FROM granule g
WHERE g.platform_type = ANY($1)
	AND g.data_granule_type = ANY($2)
	AND substr(g.granule_name, 8, 3) = ANY($3)
	AND g.shape IS NOT NULL
	AND g.start_time BETWEEN $4 AND $5
ORDER BY g.start_time ASC`

// PostgresSource loads granule footprints from the granule table of a
// PostGIS database.
type PostgresSource struct {
	DB    Querier
	Query GranuleQuery
}

func (s PostgresSource) Name() string {
	return "postgres"
}

func (s PostgresSource) Load(ctx context.Context) ([]*models.Record, error) {
	start := time.Now()

	if err := s.Query.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, granuleSQL,
		s.Query.PlatformTypes,
		s.Query.GranuleTypes,
		s.Query.ProductTypes,
		s.Query.Start,
		s.Query.End,
	)
	if err != nil {
		return nil, errors.New("querying granules failed").
			WithType(ErrTypeSourceUnavailable).
			Wrap(err)
	}
	defer rows.Close()

	var records []*models.Record
	for i := 0; rows.Next(); i++ {
		var props map[string]any
		var shape []byte

		if err := rows.Scan(&props, &shape); err != nil {
			return nil, errors.New("scanning granule failed").
				WithType(ErrTypeInvalidFeature).
				WithTag("row", i).
				Wrap(err)
		}

		g, err := wkb.Unmarshal(shape)
		if err != nil {
			logs.Warn(errors.New("skipping granule with an undecodable shape").
				WithType(ErrTypeInvalidFeature).
				WithTag("row", i).
				WithTag("granule_name", props["granule_name"]).
				Wrap(err))
			continue
		}

		recs, ok := recordsFromGeometry(models.Attributes(props), g)
		if !ok {
			logs.WithTag("row", i).
				WithTag("granule_name", props["granule_name"]).
				WithTag("geometry", g.GeoJSONType()).
				Warn("skipping granule with a non polygonal shape")
			continue
		}
		records = append(records, recs...)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("reading granules failed").
			WithType(ErrTypeSourceUnavailable).
			Wrap(err)
	}

	instrumentLoad(s.Name(), len(records), start)
	logs.WithTag("source", s.Name()).
		WithTag("start", s.Query.Start).
		WithTag("end", s.Query.End).
		WithTag("records", len(records)).
		WithTag("duration", time.Since(start)).
		Info("footprints loaded")
	return records, nil
}
