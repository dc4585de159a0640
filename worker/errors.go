package main

import (
	"context"
	"strconv"

	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
)

// ErrorHandler logs failed job attempts and counts them. It never changes
// river's retry decision.
type ErrorHandler struct {
	Log logrus.FieldLogger
}

// HandleError logs a failed attempt, at error level when it was the last one.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	final := job.Attempt >= job.MaxAttempts
	log := h.record(job, final).WithError(err)
	if final {
		log.Error("job discarded after final attempt")
	} else {
		log.Warn("job attempt failed")
	}
	return nil
}

// HandlePanic logs a panicking attempt with its stack trace.
func (h *ErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	final := job.Attempt >= job.MaxAttempts
	h.record(job, final).WithFields(logrus.Fields{
		"panic": panicVal,
		"trace": trace,
	}).Error("job panicked")
	return nil
}

func (h *ErrorHandler) record(job *rivertype.JobRow, final bool) *logrus.Entry {
	internal.JobFailuresTotal.WithLabelValues(job.Kind, strconv.FormatBool(final)).Inc()
	return h.Log.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"kind":         job.Kind,
		"attempt":      job.Attempt,
		"max_attempts": job.MaxAttempts,
		"final":        final,
	})
}
