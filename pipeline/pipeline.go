package pipeline

import (
	"context"
	"path"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/granulemap/granulemap/models"
	"github.com/granulemap/granulemap/modules"
	"github.com/granulemap/granulemap/sink"
	"github.com/granulemap/granulemap/source"
)

const (
	// DefaultKeyPrefix is the directory of the published datasets.
	DefaultKeyPrefix = "footprints"

	// LatestKey is the name under which the last dataset is always
	// published.
	LatestKey = "latest.geojson"

	ErrTypeStageFailed = "stage_failed"
)

// Publisher writes an encoded dataset under a set of keys.
type Publisher interface {
	Publish(ctx context.Context, keys []string, data []byte) error
}

// Pipeline loads footprints from a source, runs them through the stages and
// publishes the result.
type Pipeline struct {
	Source    source.Source
	Stages    []modules.Module
	Publisher Publisher

	// Drops the records a stage could not process instead of failing the
	// run.
	SkipInvalid bool

	// Defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// Result summarizes a run.
type Result struct {
	RunID    string
	Loaded   int
	Output   int
	Skipped  int
	Keys     []string
	Duration time.Duration
}

// LatestDatasetKey returns the key of the last published dataset for
// prefix.
func LatestDatasetKey(prefix string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return path.Join(prefix, LatestKey)
}

func (p Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{
		RunID: uuid.NewString(),
	}

	logs.WithTag("run_id", res.RunID).
		WithTag("source", p.Source.Name()).
		WithTag("stages", len(p.Stages)).
		Info("pipeline run started")

	records, err := p.Source.Load(ctx)
	if err != nil {
		instrumentRun(err)
		return res, errors.New("loading footprints failed").
			WithType(errors.Type(err)).
			WithTag("run_id", res.RunID).
			WithTag("source", p.Source.Name()).
			Wrap(err)
	}
	res.Loaded = len(records)

	for _, stage := range p.Stages {
		var skipped int
		if records, skipped, err = p.runStage(ctx, res.RunID, stage, records); err != nil {
			instrumentRun(err)
			return res, err
		}
		res.Skipped += skipped
	}
	res.Output = len(records)

	var ids models.FeatureIDGenerator
	data, err := sink.Encode(records, &ids)
	if err != nil {
		instrumentRun(err)
		return res, err
	}

	prefix := p.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	res.Keys = []string{
		path.Join(prefix, res.RunID+".geojson"),
		LatestDatasetKey(prefix),
	}

	if p.Publisher != nil {
		if err := p.Publisher.Publish(ctx, res.Keys, data); err != nil {
			instrumentRun(err)
			return res, errors.New("publishing footprints failed").
				WithType(errors.Type(err)).
				WithTag("run_id", res.RunID).
				Wrap(err)
		}
	}

	res.Duration = time.Since(start)
	instrumentRun(nil)
	instrumentRecords(res)

	logs.WithTag("run_id", res.RunID).
		WithTag("loaded", res.Loaded).
		WithTag("output", res.Output).
		WithTag("skipped", res.Skipped).
		WithTag("bytes", len(data)).
		WithTag("duration", res.Duration).
		Info("pipeline run done")
	return res, nil
}

func (p Pipeline) runStage(ctx context.Context, runID string, stage modules.Module, records []*models.Record) ([]*models.Record, int, error) {
	start := time.Now()
	input := len(records)
	skipped := 0

	out, err := stage.Process(ctx, records)
	instrumentStage(stage.Name(), start)

	if batchErr, ok := models.AsBatchError(err); ok {
		for _, recErr := range batchErr.Errors {
			granule, _ := recErr.Record.Property(models.GranuleNameKey)

			logs.Warn(errors.New("record could not be processed").
				WithType(errors.Type(recErr.Err)).
				WithTag("run_id", runID).
				WithTag("stage", stage.Name()).
				WithTag("index", recErr.Index).
				WithTag("granule_name", granule).
				Wrap(recErr.Err))
		}

		if !p.SkipInvalid {
			return nil, 0, errors.New("stage could not process every record").
				WithType(ErrTypeStageFailed).
				WithTag("run_id", runID).
				WithTag("stage", stage.Name()).
				WithTag("failed", len(batchErr.Errors)).
				Wrap(err)
		}

		skipped = len(batchErr.Errors)
		instrumentSkipped(stage.Name(), skipped)
		err = nil
	}

	if err != nil {
		return nil, 0, errors.New("stage failed").
			WithType(errors.Type(err)).
			WithTag("run_id", runID).
			WithTag("stage", stage.Name()).
			Wrap(err)
	}

	logs.WithTag("run_id", runID).
		WithTag("stage", stage.Name()).
		WithTag("input", input).
		WithTag("output", len(out)).
		WithTag("skipped", skipped).
		WithTag("duration", time.Since(start)).
		Info("stage done")
	return out, skipped, nil
}
