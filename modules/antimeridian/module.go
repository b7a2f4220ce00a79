package antimeridian

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
)

// Splitter splits the records whose geometry crosses the antimeridian.
type Splitter struct {
	// The longitude gap that marks a seam crossing. Defaults to
	// DefaultSeamThreshold.
	Threshold float64
}

func (s Splitter) threshold() float64 {
	if s.Threshold <= 0 {
		return DefaultSeamThreshold
	}
	return s.Threshold
}

// SplitRecord returns rec unchanged when its geometry does not cross the
// seam. Otherwise it returns two records, west then east, that carry the
// attributes of rec. A side with no area is left out, so a footprint that
// only touches the seam yields a single record.
func (s Splitter) SplitRecord(rec *models.Record) ([]*models.Record, error) {
	if err := models.ValidateRing(rec.Ring); err != nil {
		return nil, err
	}

	if !CrossesSeam(rec.Ring, s.threshold()) {
		return []*models.Record{rec}, nil
	}

	west, east, err := Split(rec.Ring)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Record, 0, 2)
	for _, side := range []orb.Ring{west, east} {
		if side != nil {
			out = append(out, rec.WithRing(side))
		}
	}
	return out, nil
}

// Module is the pipeline stage that splits seam crossing records.
type Module struct {
	Splitter Splitter
}

func (m *Module) Name() string {
	return "antimeridian"
}

func (m *Module) Process(ctx context.Context, records []*models.Record) ([]*models.Record, error) {
	start := time.Now()
	out := make([]*models.Record, 0, len(records))

	var failed []models.RecordError
	splits := 0

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		split, err := m.Splitter.SplitRecord(rec)
		if err != nil {
			instrumentSplitError(err)
			failed = append(failed, models.RecordError{
				Index:  i,
				Record: rec,
				Err:    err,
			})
			continue
		}

		if len(split) == 2 {
			splits++
		}
		out = append(out, split...)
	}

	instrumentSplits(splits)
	logs.WithTag("module", m.Name()).
		WithTag("input", len(records)).
		WithTag("output", len(out)).
		WithTag("splits", splits).
		WithTag("errors", len(failed)).
		WithTag("duration", time.Since(start)).
		Debug("antimeridian split done")

	if len(failed) != 0 {
		return out, &models.BatchError{
			Stage:  m.Name(),
			Errors: failed,
		}
	}
	return out, nil
}
