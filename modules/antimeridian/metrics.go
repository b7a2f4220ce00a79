package antimeridian

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	seamSplits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "antimeridian_splits_total",
		Help: "The number of footprints split along the antimeridian.",
	})

	seamSplitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "antimeridian_split_errors_total",
		Help: "The footprints that could not be split along the antimeridian.",
	}, []string{
		errTypeLabel,
	})
)

func instrumentSplits(n int) {
	seamSplits.Add(float64(n))
}

func instrumentSplitError(err error) {
	seamSplitErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
