package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	merges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadtree_merges_total",
		Help: "The number of duplicate footprints folded into another one.",
	})

	leafErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_leaf_errors_total",
		Help: "The leaves whose footprints could not be merged.",
	}, []string{
		errTypeLabel,
	})

	treeDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quadtree_depth",
		Help: "The depth of the last built quad-tree.",
	})

	leafOccupancy = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadtree_leaf_occupancy",
		Help:    "The number of footprints left in each non empty leaf after merging.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
)

func instrumentMerges(n int) {
	merges.Add(float64(n))
}

func instrumentLeafError(err error) {
	leafErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentStats(s Stats) {
	treeDepth.Set(float64(s.MaxDepth))
	for _, n := range s.Occupancy {
		leafOccupancy.Observe(float64(n))
	}
}
