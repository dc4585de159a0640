package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/sirupsen/logrus"
)

var ErrMissingJobMetadata = errors.New("job state change has no output prefix metadata")

type ReconcileOutcome string

const (
	// ReconcileApplied means the lesson now points at the new manifest.
	ReconcileApplied ReconcileOutcome = "applied"
	// ReconcileIgnored means the event was not a completion.
	ReconcileIgnored ReconcileOutcome = "ignored"
	// ReconcileJobFailed means MediaConvert reported status ERROR.
	ReconcileJobFailed ReconcileOutcome = "job_failed"
	// ReconcileLessonMissing means the lesson no longer exists in the catalog.
	ReconcileLessonMissing ReconcileOutcome = "lesson_missing"
)

type ReconcileResult struct {
	Outcome     ReconcileOutcome
	CourseID    string
	LessonID    string
	ManifestKey string
}

// Reconciler maps MediaConvert completions back onto catalog lessons. Every
// write is a pure function of the event's metadata, so a redelivered event
// leaves the catalog in the same state.
type Reconciler struct {
	store CatalogStore
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewReconciler creates a reconciler that writes to store.
func NewReconciler(store CatalogStore, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{store: store, log: log, now: time.Now}
}

// WithClock replaces the time source used for updatedAt.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Handle applies one job state change to the catalog.
func (r *Reconciler) Handle(ctx context.Context, ev *JobStateChange) (*ReconcileResult, error) {
	log := r.log.WithFields(logrus.Fields{"job_id": ev.JobID, "status": ev.Status})

	switch types.JobStatus(ev.Status) {
	case types.JobStatusComplete:
	case types.JobStatusError:
		log.WithFields(logrus.Fields{
			"error_code":    ev.ErrorCode,
			"error_message": ev.ErrorMessage,
			"input_key":     ev.UserMetadata[MetadataInputKey],
		}).Error("transcode job failed")
		transcodeFailuresTotal.Inc()
		reconcileEventsTotal.WithLabelValues(string(ReconcileJobFailed)).Inc()
		return &ReconcileResult{Outcome: ReconcileJobFailed}, nil
	default:
		log.Info("ignoring non-terminal job status")
		reconcileEventsTotal.WithLabelValues(string(ReconcileIgnored)).Inc()
		return &ReconcileResult{Outcome: ReconcileIgnored}, nil
	}

	meta, ok := ev.Metadata()
	if !ok {
		reconcileEventsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: job %s", ErrMissingJobMetadata, ev.JobID)
	}
	courseID, lessonID, err := ParseOutputPrefix(meta.OutputPrefix)
	if err != nil {
		reconcileEventsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	manifestKey := GenerateManifestKey(courseID, lessonID)
	log = log.WithFields(logrus.Fields{"course_id": courseID, "lesson_id": lessonID, "manifest_key": manifestKey})
	r.checkReportedPlaylist(log, ev, manifestKey)

	result := &ReconcileResult{CourseID: courseID, LessonID: lessonID, ManifestKey: manifestKey}
	err = r.store.SetManifestKey(ctx, courseID, lessonID, manifestKey, r.now())
	switch {
	case errors.Is(err, ErrLessonNotFound):
		log.Warn("lesson missing from catalog, skipping")
		reconcileEventsTotal.WithLabelValues(string(ReconcileLessonMissing)).Inc()
		result.Outcome = ReconcileLessonMissing
		return result, nil
	case err != nil:
		reconcileEventsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	log.Info("lesson manifest updated")
	reconcileEventsTotal.WithLabelValues(string(ReconcileApplied)).Inc()
	result.Outcome = ReconcileApplied
	return result, nil
}

// checkReportedPlaylist warns when MediaConvert reports a master playlist
// other than the computed manifest key. The computed key is still stored.
func (r *Reconciler) checkReportedPlaylist(log logrus.FieldLogger, ev *JobStateChange, manifestKey string) {
	paths := ev.HLSPlaylistPaths()
	if len(paths) == 0 {
		return
	}
	for _, p := range paths {
		if playlistMatches(p, manifestKey) {
			return
		}
	}
	log.WithField("reported_playlists", paths).Warn("reported playlist does not match computed manifest key")
}
