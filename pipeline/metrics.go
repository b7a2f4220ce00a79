package pipeline

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	stageLabel   = "stage"
)

var (
	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "The number of pipeline runs.",
	}, []string{
		errTypeLabel,
	})

	recordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_records_ingested_total",
		Help: "The number of footprints loaded by successful runs.",
	})

	recordsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_records_published_total",
		Help: "The number of footprints published by successful runs.",
	})

	recordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_records_skipped_total",
		Help: "The footprints dropped because a stage could not process them.",
	}, []string{
		stageLabel,
	})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_latency",
		Help:    "The time a stage takes to process a run.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		stageLabel,
	})
)

func instrumentRun(err error) {
	var errType string
	if err != nil {
		errType = errors.Type(err)
	}

	runs.With(prometheus.Labels{
		errTypeLabel: errType,
	}).Inc()
}

func instrumentRecords(res Result) {
	recordsIngested.Add(float64(res.Loaded))
	recordsPublished.Add(float64(res.Output))
}

func instrumentSkipped(stage string, n int) {
	recordsSkipped.With(prometheus.Labels{
		stageLabel: stage,
	}).Add(float64(n))
}

func instrumentStage(stage string, start time.Time) {
	stageLatency.With(prometheus.Labels{
		stageLabel: stage,
	}).Observe(time.Since(start).Seconds())
}
