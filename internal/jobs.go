package internal

import (
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// IngestJobArgs carries one storage notification batch. River redelivers
// the whole batch when any record fails to submit.
type IngestJobArgs struct {
	DeliveryID uuid.UUID              `json:"deliveryId"`
	Records    []events.S3EventRecord `json:"records"`
}

// Kind returns the job kind identifier for River.
func (IngestJobArgs) Kind() string {
	return "ingest"
}

// InsertOpts returns the default insert options for ingest jobs.
func (IngestJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 10}
}

// ReconcileJobArgs carries one MediaConvert job state change.
type ReconcileJobArgs struct {
	DeliveryID uuid.UUID      `json:"deliveryId"`
	Event      JobStateChange `json:"event"`
}

// Kind returns the job kind identifier for River.
func (ReconcileJobArgs) Kind() string {
	return "reconcile"
}

// InsertOpts returns the default insert options for reconcile jobs.
func (ReconcileJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 10}
}

// LessonReadyJobArgs notifies an external system that a lesson can be played.
type LessonReadyJobArgs struct {
	URI            string `json:"uri"`
	CourseID       string `json:"courseId"`
	LessonID       string `json:"lessonId"`
	HLSManifestKey string `json:"hlsManifestKey"`
}

// Kind returns the job kind identifier for River.
func (LessonReadyJobArgs) Kind() string {
	return "lesson_ready_webhook"
}

// InsertOpts makes repeated completions of the same lesson collapse into one
// notification per hour.
func (LessonReadyJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Hour,
		},
	}
}
