package quadtree

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/models"
)

// Module is the pipeline stage that indexes records in a quad-tree and merges
// the duplicates.
type Module struct {
	Options Options

	lastStats Stats
}

func (m *Module) Name() string {
	return "quadtree"
}

// Process returns the merged records. The records of leaves that could not
// be merged are left out and reported in a *models.BatchError.
func (m *Module) Process(ctx context.Context, records []*models.Record) ([]*models.Record, error) {
	start := time.Now()

	root := NewIndex(records)
	err := root.Split(ctx, m.Options)

	splitErr, ok := err.(*SplitError)
	if err != nil && !ok {
		return nil, err
	}

	out := root.Records()
	stats := root.Stats()
	m.lastStats = stats
	instrumentStats(stats)

	logs.WithTag("module", m.Name()).
		WithTag("input", len(records)).
		WithTag("output", len(out)).
		WithTag("nodes", stats.Nodes).
		WithTag("leaves", stats.Leaves).
		WithTag("depth", stats.MaxDepth).
		WithTag("failed_leaves", failedLeaves(splitErr)).
		WithTag("duration", time.Since(start)).
		Debug("quad-tree merge done")

	if splitErr != nil {
		return out, m.batchError(records, splitErr)
	}
	return out, nil
}

func (m *Module) batchError(records []*models.Record, splitErr *SplitError) *models.BatchError {
	indexes := make(map[*models.Record]int, len(records))
	for i, rec := range records {
		indexes[rec] = i
	}

	var failed []models.RecordError
	for _, leaf := range splitErr.Leaves {
		err := errors.New("merging leaf records failed").
			WithType(errors.Type(leaf.Err)).
			WithTag("top_left", leaf.TopLeft).
			WithTag("width", leaf.Width).
			WithTag("leaf_records", len(leaf.Records)).
			Wrap(leaf.Err)

		for _, rec := range leaf.Records {
			failed = append(failed, models.RecordError{
				Index:  indexes[rec],
				Record: rec,
				Err:    err,
			})
		}
	}

	slices.SortFunc(failed, func(a, b models.RecordError) int {
		return cmp.Compare(a.Index, b.Index)
	})

	return &models.BatchError{
		Stage:  m.Name(),
		Errors: failed,
	}
}

func failedLeaves(err *SplitError) int {
	if err == nil {
		return 0
	}
	return len(err.Leaves)
}

// LastStats returns the shape of the tree built by the last Process call.
func (m *Module) LastStats() Stats {
	return m.lastStats
}
