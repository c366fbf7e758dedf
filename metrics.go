package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsJob = "dataset_prep"

var (
	recordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_prep_records",
			Help: "Records written per dataset partition in the last run",
		},
		[]string{"dataset", "partition"},
	)

	labelsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_prep_labels",
			Help: "Labels per dataset by classification",
		},
		[]string{"dataset", "kind"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_prep_runs_total",
			Help: "Count of pipeline runs",
		},
		[]string{"status"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_prep_fetch_duration_seconds",
			Help:    "Time spent extracting tickets per window",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"window"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_prep_db_retries_total",
			Help: "Count of retries while the database was resuming",
		},
		[]string{"backend"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_prep_uploads_total",
			Help: "Count of partition uploads",
		},
		[]string{"status"},
	)
)

func initMetrics(reg prometheus.Registerer) {
	reg.MustRegister(recordsTotal)
	reg.MustRegister(labelsGauge)
	reg.MustRegister(runsTotal)
	reg.MustRegister(fetchDuration)
	reg.MustRegister(retriesTotal)
	reg.MustRegister(uploadsTotal)
}

// pushMetrics sends the gathered metrics to a Pushgateway, grouped by batch.
// A run is a short-lived job, so there is nothing to scrape.
func pushMetrics(ctx context.Context, url, batchID string, g prometheus.Gatherer) error {
	err := push.New(url, metricsJob).
		Grouping("batch_id", batchID).
		Gatherer(g).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
