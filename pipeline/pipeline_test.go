package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/models"
	"github.com/granulemap/granulemap/modules"
	"github.com/granulemap/granulemap/modules/antimeridian"
	"github.com/granulemap/granulemap/modules/quadtree"
	"github.com/granulemap/granulemap/source"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	records func() []*models.Record
	err     error
}

func (s memorySource) Name() string {
	return "memory"
}

func (s memorySource) Load(ctx context.Context) ([]*models.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records(), nil
}

type memoryPublisher struct {
	err error

	keys []string
	data []byte
}

func (p *memoryPublisher) Publish(ctx context.Context, keys []string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.keys = keys
	p.data = data
	return nil
}

func granules() []*models.Record {
	return []*models.Record{
		models.NewRecord(models.Attributes{"granule_name": "a"}, orb.Ring{{10, 20}, {11, 20}, {11, 21}, {10, 21}, {10, 20}}),
		models.NewRecord(models.Attributes{"granule_name": "b"}, orb.Ring{{10, 20}, {11, 20}, {11, 21}, {10, 21}, {10, 20}}),
		models.NewRecord(models.Attributes{"granule_name": "c"}, orb.Ring{{179, 10}, {-179, 10}, {-179, -10}, {179, -10}, {179, 10}}),
	}
}

func stages() []modules.Module {
	return []modules.Module{
		&antimeridian.Module{},
		&quadtree.Module{Options: quadtree.DefaultOptions()},
	}
}

func TestPipelineRun(t *testing.T) {
	t.Run("splits merges and publishes", func(t *testing.T) {
		publisher := &memoryPublisher{}
		p := Pipeline{
			Source:    memorySource{records: granules},
			Stages:    stages(),
			Publisher: publisher,
		}

		res, err := p.Run(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, res.RunID)
		require.Equal(t, 3, res.Loaded)
		require.Equal(t, 3, res.Output)
		require.Zero(t, res.Skipped)
		require.Equal(t, []string{
			"footprints/" + res.RunID + ".geojson",
			"footprints/latest.geojson",
		}, res.Keys)
		require.Equal(t, res.Keys, publisher.keys)

		records, err := source.DecodeFeatureCollection(publisher.data)
		require.NoError(t, err)
		require.Len(t, records, 3)

		ancestors := 0
		for _, rec := range records {
			require.True(t, rec.IsStandardized())
			ancestors += len(rec.Ancestors)
		}
		require.Equal(t, 4, ancestors)
	})

	t.Run("run ids are unique", func(t *testing.T) {
		p := Pipeline{Source: memorySource{records: granules}}

		a, err := p.Run(context.Background())
		require.NoError(t, err)
		b, err := p.Run(context.Background())
		require.NoError(t, err)
		require.NotEqual(t, a.RunID, b.RunID)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		p := Pipeline{
			Source:    memorySource{records: granules},
			KeyPrefix: "outlines/s1",
		}

		res, err := p.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, "outlines/s1/latest.geojson", res.Keys[1])
	})

	t.Run("invalid records fail the run", func(t *testing.T) {
		p := Pipeline{
			Source:    memorySource{records: withInvalid},
			Stages:    stages(),
			Publisher: &memoryPublisher{},
		}

		_, err := p.Run(context.Background())
		require.Error(t, err)
		require.Equal(t, ErrTypeStageFailed, errors.Type(err))
	})

	t.Run("invalid records are skipped", func(t *testing.T) {
		publisher := &memoryPublisher{}
		p := Pipeline{
			Source:      memorySource{records: withInvalid},
			Stages:      stages(),
			Publisher:   publisher,
			SkipInvalid: true,
		}

		res, err := p.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 4, res.Loaded)
		require.Equal(t, 1, res.Skipped)
		require.Equal(t, 3, res.Output)
		require.NotEmpty(t, publisher.data)
	})

	t.Run("leaves that cannot be merged are skipped", func(t *testing.T) {
		records := func() []*models.Record {
			return []*models.Record{
				models.NewRecord(models.Attributes{"granule_name": "a"}, orb.Ring{{10, 20}, {10.02, 20}, {10.02, 20.02}, {10, 20.02}, {10, 20}}),
				models.NewRecord(models.Attributes{"granule_name": "b"}, orb.Ring{{10, 20}, {10.02, 20}, {10.02, 20.02}, {10, 20}}),
				models.NewRecord(models.Attributes{"granule_name": "c"}, orb.Ring{{-50, -20}, {-49, -20}, {-49, -19}, {-50, -20}}),
			}
		}
		opts := quadtree.DefaultOptions()
		opts.Match = func(a, b orb.Ring, tolerance float64) bool {
			return true
		}

		p := Pipeline{
			Source:      memorySource{records: records},
			Stages:      []modules.Module{&quadtree.Module{Options: opts}},
			SkipInvalid: true,
		}

		res, err := p.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, res.Loaded)
		require.Equal(t, 2, res.Skipped)
		require.Equal(t, 1, res.Output)
	})

	t.Run("source error", func(t *testing.T) {
		p := Pipeline{
			Source: memorySource{err: errors.New("database down").WithType(source.ErrTypeSourceUnavailable)},
			Stages: stages(),
		}

		_, err := p.Run(context.Background())
		require.Error(t, err)
		require.True(t, errors.IsType(err, source.ErrTypeSourceUnavailable))
	})

	t.Run("stage error", func(t *testing.T) {
		p := Pipeline{
			Source: memorySource{records: granules},
			Stages: []modules.Module{
				&quadtree.Module{Options: quadtree.Options{Tolerance: -1}},
			},
		}

		_, err := p.Run(context.Background())
		require.Error(t, err)
		require.True(t, errors.IsType(err, models.ErrTypeInvalidTolerance))
	})

	t.Run("publish error", func(t *testing.T) {
		p := Pipeline{
			Source:    memorySource{records: granules},
			Publisher: &memoryPublisher{err: errors.New("bucket missing").WithType("publish_failed")},
		}

		_, err := p.Run(context.Background())
		require.Error(t, err)
		require.True(t, errors.IsType(err, "publish_failed"))
	})
}

func TestPipelineRunLogs(t *testing.T) {
	var mutex sync.Mutex
	var b strings.Builder

	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprint(&b, e)
	})

	res, err := Pipeline{
		Source: memorySource{records: granules},
		Stages: stages(),
	}.Run(context.Background())
	require.NoError(t, err)

	mutex.Lock()
	defer mutex.Unlock()

	out := b.String()
	require.Contains(t, out, res.RunID)
	require.Contains(t, out, "pipeline run done")
	require.Contains(t, out, `"stage":"quadtree"`)
}

func TestPipelineRunLogsSkippedRecords(t *testing.T) {
	var mutex sync.Mutex
	var b strings.Builder

	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprint(&b, e)
	})

	_, err := Pipeline{
		Source:      memorySource{records: withInvalid},
		Stages:      stages(),
		SkipInvalid: true,
	}.Run(context.Background())
	require.NoError(t, err)

	mutex.Lock()
	defer mutex.Unlock()

	out := b.String()
	require.Contains(t, out, "record could not be processed")
	require.Contains(t, out, "bad")
}

func withInvalid() []*models.Record {
	return append(granules(), models.NewRecord(models.Attributes{"granule_name": "bad"}, orb.Ring{{0, 0}, {1, 1}}))
}
