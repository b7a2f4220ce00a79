package quadtree

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func square(x, y, side float64) orb.Ring {
	return orb.Ring{{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y}}
}

func TestEngineMerge(t *testing.T) {
	t.Run("unit squares within tolerance", func(t *testing.T) {
		a := models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1))
		b := models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0.05, 1))

		out, err := Merge([]*models.Record{a, b}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 1)

		merged := out[0]
		require.Same(t, a, merged)
		require.True(t, merged.IsStandardized())
		require.Nil(t, merged.Properties)
		require.Equal(t, []models.Attributes{
			{"granule_name": "a"},
			{"granule_name": "b"},
		}, merged.Ancestors)

		want := orb.Ring{{0, 0.025}, {1, 0.025}, {1, 1.025}, {0, 1.025}, {0, 0.025}}
		require.Len(t, merged.Ring, len(want))
		for i := range want {
			require.InDelta(t, want[i][0], merged.Ring[i][0], 1e-9)
			require.InDelta(t, want[i][1], merged.Ring[i][1], 1e-9)
		}
	})

	t.Run("records out of tolerance are kept apart", func(t *testing.T) {
		a := models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1))
		b := models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0.5, 1))

		out, err := Merge([]*models.Record{a, b}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 2)
		require.Equal(t, square(0, 0, 1), out[0].Ring)
		require.Equal(t, square(0, 0.5, 1), out[1].Ring)
		for _, rec := range out {
			require.True(t, rec.IsStandardized())
			require.Len(t, rec.Ancestors, 1)
		}
	})

	t.Run("single record is standardized", func(t *testing.T) {
		a := models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1))

		out, err := Merge([]*models.Record{a}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, []models.Attributes{{"granule_name": "a"}}, out[0].Ancestors)
	})

	t.Run("empty input", func(t *testing.T) {
		out, err := Merge(nil, 0.1)
		require.NoError(t, err)
		require.Empty(t, out)
	})

	t.Run("input slice is not modified", func(t *testing.T) {
		a := models.NewRecord(nil, square(0, 0, 1))
		b := models.NewRecord(nil, square(0, 0, 1))
		records := []*models.Record{a, b}

		_, err := Merge(records, 0.1)
		require.NoError(t, err)
		require.Same(t, a, records[0])
		require.Same(t, b, records[1])
	})

	t.Run("standardized records contribute their ancestors", func(t *testing.T) {
		a := models.NewStandardizedRecord(square(0, 0, 1), []models.Attributes{
			{"granule_name": "a1"},
			{"granule_name": "a2"},
		})
		b := models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0, 1))
		c := models.NewStandardizedRecord(square(0, 0, 1), []models.Attributes{
			{"granule_name": "c1"},
		})

		out, err := Merge([]*models.Record{b, a, c}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, []models.Attributes{
			{"granule_name": "b"},
			{"granule_name": "a1"},
			{"granule_name": "a2"},
			{"granule_name": "c1"},
		}, out[0].Ancestors)
	})

	t.Run("ancestors do not depend on input order", func(t *testing.T) {
		build := func() []*models.Record {
			return []*models.Record{
				models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1)),
				models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0.01, 1)),
				models.NewRecord(models.Attributes{"granule_name": "c"}, square(0.01, 0, 1)),
			}
		}

		forward, err := Merge(build(), 0.1)
		require.NoError(t, err)

		records := build()
		reversed, err := Merge([]*models.Record{records[2], records[0], records[1]}, 0.1)
		require.NoError(t, err)

		require.Len(t, forward, 1)
		require.Len(t, reversed, 1)
		require.ElementsMatch(t, forward[0].Ancestors, reversed[0].Ancestors)
	})

	t.Run("merging twice changes nothing", func(t *testing.T) {
		records := []*models.Record{
			models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1)),
			models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0.05, 1)),
			models.NewRecord(models.Attributes{"granule_name": "c"}, square(5, 5, 1)),
		}

		once, err := Merge(records, 0.1)
		require.NoError(t, err)
		rings := []orb.Ring{once[0].Ring, once[1].Ring}
		ancestors := [][]models.Attributes{once[0].Ancestors, once[1].Ancestors}

		twice, err := Merge(once, 0.1)
		require.NoError(t, err)
		require.Len(t, twice, 2)
		require.Equal(t, rings, []orb.Ring{twice[0].Ring, twice[1].Ring})
		require.Equal(t, ancestors, [][]models.Attributes{twice[0].Ancestors, twice[1].Ancestors})
	})

	t.Run("skipped records are matched against the moved target", func(t *testing.T) {
		a := models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1))
		b := models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0.12, 1))
		c := models.NewRecord(models.Attributes{"granule_name": "c"}, square(0, 0.09, 1))

		out, err := Merge([]*models.Record{a, b, c}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, []models.Attributes{
			{"granule_name": "a"},
			{"granule_name": "c"},
			{"granule_name": "b"},
		}, out[0].Ancestors)
		require.InDelta(t, 0.0825, out[0].Ring[0][1], 1e-9)

		again, err := Merge(out, 0.1)
		require.NoError(t, err)
		require.Len(t, again, 1)
	})

	t.Run("no two merged records match", func(t *testing.T) {
		var records []*models.Record
		for _, offset := range []float64{0, 0.08, 0.16, 0.24} {
			records = append(records, models.NewRecord(nil, square(0, offset, 1)))
		}

		out, err := Merge(records, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 2)
		requireNoMatch(t, out, 0.1)

		again, err := Merge(out, 0.1)
		require.NoError(t, err)
		require.Len(t, again, 2)
	})

	t.Run("perturbed start vertex still matches", func(t *testing.T) {
		a := models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1))
		b := models.NewRecord(models.Attributes{"granule_name": "b"}, orb.Ring{
			{0.01, 0.05}, {1, 0.05}, {1, 1.05}, {0, 1.05}, {0.01, 0.05},
		})

		out, err := Merge([]*models.Record{a, b}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 1)

		want := orb.Ring{{0.005, 0.025}, {1, 0.025}, {1, 1.025}, {0, 1.025}, {0.005, 0.025}}
		require.Len(t, out[0].Ring, len(want))
		for i := range want {
			require.InDelta(t, want[i][0], out[0].Ring[i][0], 1e-9)
			require.InDelta(t, want[i][1], out[0].Ring[i][1], 1e-9)
		}
	})

	t.Run("failed merge leaves the records untouched", func(t *testing.T) {
		e := Engine{
			Tolerance: 0.1,
			Match: func(a, b orb.Ring, tolerance float64) bool {
				return true
			},
		}

		a := models.NewRecord(models.Attributes{"granule_name": "a"}, square(0, 0, 1))
		b := models.NewRecord(models.Attributes{"granule_name": "b"}, square(0, 0.05, 1))
		c := models.NewRecord(models.Attributes{"granule_name": "c"}, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}})

		_, err := e.Merge([]*models.Record{a, b, c})
		require.True(t, errors.IsType(err, models.ErrTypeGeometryMismatch))

		require.False(t, a.IsStandardized())
		require.Empty(t, a.Ancestors)
		require.Equal(t, models.Attributes{"granule_name": "a"}, a.Properties)
		require.Equal(t, square(0, 0, 1), a.Ring)
		require.False(t, b.IsStandardized())
	})

	t.Run("matched rings with different vertex counts", func(t *testing.T) {
		e := Engine{
			Tolerance: 0.1,
			Match: func(a, b orb.Ring, tolerance float64) bool {
				return true
			},
		}

		_, err := e.Merge([]*models.Record{
			models.NewRecord(nil, square(0, 0, 1)),
			models.NewRecord(nil, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}),
		})
		require.Error(t, err)
		require.True(t, errors.IsType(err, models.ErrTypeGeometryMismatch))
	})

	t.Run("negative tolerance", func(t *testing.T) {
		_, err := Merge([]*models.Record{models.NewRecord(nil, square(0, 0, 1))}, -1)
		require.Error(t, err)
		require.Equal(t, models.ErrTypeInvalidTolerance, errors.Type(err))
	})
}

func requireNoMatch(t *testing.T, records []*models.Record, tolerance float64) {
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			require.False(t, TolerantEqual(records[i].Ring, records[j].Ring, tolerance),
				"records %d and %d match", i, j)
		}
	}
}
