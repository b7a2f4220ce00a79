package sink

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	sinkLabel    = "sink"
)

var (
	sinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_writes_total",
		Help: "The number of datasets written to a sink.",
	}, []string{
		sinkLabel,
	})

	sinkWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_write_errors_total",
		Help: "The errors that occurred while writing a dataset to a sink.",
	}, []string{
		sinkLabel,
		errTypeLabel,
	})

	sinkWriteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "sink_write_latency",
		Help: "The time to write a dataset to a sink.",
	}, []string{
		sinkLabel,
	})
)

func instrumentWriteLatency(sink string, start time.Time) {
	sinkWriteLatency.With(prometheus.Labels{
		sinkLabel: sink,
	}).Observe(time.Since(start).Seconds())
}

func instrumentWriteSuccess(sink string) {
	sinkWrites.With(prometheus.Labels{
		sinkLabel: sink,
	}).Inc()
}

func instrumentWriteError(sink string, err error) {
	sinkWriteErrors.
		With(prometheus.Labels{
			sinkLabel:    sink,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
