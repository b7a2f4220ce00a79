package source

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceLabel = "source"
)

var (
	recordsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_records_loaded_total",
		Help: "The number of footprints loaded from a source.",
	}, []string{
		sourceLabel,
	})

	loadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "source_load_latency",
		Help: "The time to load the footprints of a source.",
	}, []string{
		sourceLabel,
	})
)

func instrumentLoad(source string, records int, start time.Time) {
	labels := prometheus.Labels{
		sourceLabel: source,
	}
	recordsLoaded.With(labels).Add(float64(records))
	loadLatency.With(labels).Observe(time.Since(start).Seconds())
}
