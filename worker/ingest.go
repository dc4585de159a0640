package main

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/riverqueue/river"
)

// BatchHandler is satisfied by *internal.Orchestrator.
type BatchHandler interface {
	HandleBatch(ctx context.Context, records []events.S3EventRecord) (*internal.IngestResult, error)
}

// IngestWorker submits one MediaConvert job per recognised upload in a
// storage notification batch.
type IngestWorker struct {
	river.WorkerDefaults[internal.IngestJobArgs]
	Orchestrator BatchHandler
}

// Timeout bounds one ingest attempt.
func (w *IngestWorker) Timeout(*river.Job[internal.IngestJobArgs]) time.Duration {
	return time.Minute
}

// Work fails the whole batch when any record fails so river redelivers it.
// Configuration errors cannot be fixed by a retry and cancel the job.
func (w *IngestWorker) Work(ctx context.Context, job *river.Job[internal.IngestJobArgs]) error {
	result, err := w.Orchestrator.HandleBatch(ctx, job.Args.Records)
	if errors.Is(err, internal.ErrConfiguration) {
		return river.JobCancel(err)
	} else if err != nil {
		return err
	}
	_ = river.RecordOutput(ctx, result)
	return nil
}
