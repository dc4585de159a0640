package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "lesson_pipeline"

var (
	ingestRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "ingest_records_total",
		Help:      "Upload records handled by the ingestion orchestrator, by outcome.",
	}, []string{"outcome"})

	reconcileEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "reconcile_events_total",
		Help:      "Job state change events handled by the completion reconciler, by outcome.",
	}, []string{"outcome"})

	transcodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "transcode_failures_total",
		Help:      "MediaConvert jobs that finished with status ERROR.",
	})

	credentialsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "credentials_issued_total",
		Help:      "Signed credentials issued to viewers and instructors, by kind.",
	}, []string{"kind"})

	// IntakeEventsTotal counts events received over HTTP, by kind and outcome.
	IntakeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "intake_events_total",
		Help:      "Storage and transcode events received by the intake endpoints.",
	}, []string{"kind", "outcome"})

	// JobFailuresTotal counts failed river job attempts, by job kind and whether
	// the job was discarded.
	JobFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "job_failures_total",
		Help:      "Failed background job attempts.",
	}, []string{"kind", "final"})
)
