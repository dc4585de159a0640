package main

import (
	"context"
	"fmt"
	"time"

	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
)

type EventHandler interface {
	Handle(ctx context.Context, ev *internal.JobStateChange) (*internal.ReconcileResult, error)
}

// JobInserter is satisfied by *river.Client.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ReconcileWorker applies MediaConvert completions to the lesson catalog.
// When WebhookURL is set, every applied completion also queues a
// lesson-ready notification.
type ReconcileWorker struct {
	river.WorkerDefaults[internal.ReconcileJobArgs]
	Reconciler EventHandler
	Inserter   JobInserter
	WebhookURL string
	Log        logrus.FieldLogger
}

// Timeout bounds one reconcile attempt.
func (w *ReconcileWorker) Timeout(*river.Job[internal.ReconcileJobArgs]) time.Duration {
	return time.Minute
}

// Work reconciles the event and queues the lesson ready webhook when configured.
func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[internal.ReconcileJobArgs]) error {
	event := job.Args.Event
	result, err := w.Reconciler.Handle(ctx, &event)
	if err != nil {
		return err
	}
	_ = river.RecordOutput(ctx, result)

	if result.Outcome != internal.ReconcileApplied || w.WebhookURL == "" {
		return nil
	}
	args := internal.LessonReadyJobArgs{
		URI:            w.WebhookURL,
		CourseID:       result.CourseID,
		LessonID:       result.LessonID,
		HLSManifestKey: result.ManifestKey,
	}
	if _, err := w.Inserter.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to enqueue lesson ready webhook: %w", err)
	}
	w.Log.WithFields(logrus.Fields{
		"delivery_id": job.Args.DeliveryID,
		"course_id":   result.CourseID,
		"lesson_id":   result.LessonID,
	}).Info("queued lesson ready webhook")
	return nil
}
