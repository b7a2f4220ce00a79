package antimeridian

import (
	"context"
	"testing"

	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestSplitterSplitRecord(t *testing.T) {
	var s Splitter

	t.Run("record away from the seam is returned unchanged", func(t *testing.T) {
		rec := models.NewRecord(models.Attributes{"granule_name": "a"}, orb.Ring{
			{10, 10}, {12, 10}, {12, 12}, {10, 12}, {10, 10},
		})

		out, err := s.SplitRecord(rec)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Same(t, rec, out[0])
	})

	t.Run("seam crossing record is duplicated", func(t *testing.T) {
		rec := models.NewRecord(models.Attributes{"granule_name": "b"}, seamSquare())

		out, err := s.SplitRecord(rec)
		require.NoError(t, err)
		require.Len(t, out, 2)

		for _, r := range out {
			require.Equal(t, rec.Properties, r.Properties)
			require.Empty(t, r.Ancestors)
		}
		require.Equal(t, -180.0, out[0].Ring[0][0])
		require.Equal(t, 179.0, out[1].Ring[0][0])
	})

	t.Run("record touching the seam keeps its only side", func(t *testing.T) {
		rec := models.NewRecord(models.Attributes{"granule_name": "c"}, orb.Ring{
			{180, 10}, {-179, 10}, {-179, -10}, {180, -10},
		})

		out, err := s.SplitRecord(rec)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, orb.Ring{
			{-180, 10}, {-179, 10}, {-179, -10}, {-180, -10}, {-180, 10},
		}, out[0].Ring)
		require.Equal(t, rec.Properties, out[0].Properties)
	})

	t.Run("custom threshold", func(t *testing.T) {
		s := Splitter{Threshold: 359}
		rec := models.NewRecord(nil, seamSquare())

		out, err := s.SplitRecord(rec)
		require.NoError(t, err)
		require.Len(t, out, 1)
	})

	t.Run("malformed record", func(t *testing.T) {
		rec := models.NewRecord(nil, orb.Ring{{0, 0}, {1, 1}})

		_, err := s.SplitRecord(rec)
		require.Error(t, err)
	})
}

func TestModuleProcess(t *testing.T) {
	m := &Module{}
	require.Equal(t, "antimeridian", m.Name())

	t.Run("splits and passes records through", func(t *testing.T) {
		records := []*models.Record{
			models.NewRecord(models.Attributes{"id": 1}, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}),
			models.NewRecord(models.Attributes{"id": 2}, seamSquare()),
		}

		out, err := m.Process(context.Background(), records)
		require.NoError(t, err)
		require.Len(t, out, 3)
	})

	t.Run("records touching the seam are not duplicated", func(t *testing.T) {
		records := []*models.Record{
			models.NewRecord(models.Attributes{"id": 1}, orb.Ring{{180, 10}, {-179, 10}, {-179, -10}, {180, -10}, {180, 10}}),
			models.NewRecord(models.Attributes{"id": 2}, orb.Ring{{179, 10}, {-180, 10}, {-180, -10}, {179, -10}, {179, 10}}),
		}

		out, err := m.Process(context.Background(), records)
		require.NoError(t, err)
		require.Len(t, out, 2)
		require.Equal(t, -180.0, out[0].Ring[0][0])
		require.Equal(t, 179.0, out[1].Ring[0][0])
	})

	t.Run("reports failed records and keeps the others", func(t *testing.T) {
		bad := models.NewRecord(models.Attributes{"id": 2}, orb.Ring{{0, 0}})
		records := []*models.Record{
			models.NewRecord(models.Attributes{"id": 1}, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}),
			bad,
		}

		out, err := m.Process(context.Background(), records)
		require.Error(t, err)
		require.Len(t, out, 1)

		batchErr, ok := models.AsBatchError(err)
		require.True(t, ok)
		require.Equal(t, "antimeridian", batchErr.Stage)
		require.Len(t, batchErr.Errors, 1)
		require.Equal(t, 1, batchErr.Errors[0].Index)
		require.Same(t, bad, batchErr.Errors[0].Record)
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := m.Process(ctx, []*models.Record{models.NewRecord(nil, seamSquare())})
		require.ErrorIs(t, err, context.Canceled)
	})
}
