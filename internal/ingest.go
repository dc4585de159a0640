package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const ingestConcurrency = 4

// SubmittedJob records one MediaConvert job created for an upload.
type SubmittedJob struct {
	JobID        string `json:"jobId"`
	InputKey     string `json:"inputKey"`
	OutputPrefix string `json:"outputPrefix"`
}

// IngestResult lists what happened to each record of a batch, in record order.
type IngestResult struct {
	Submitted []SubmittedJob `json:"submitted"`
	Skipped   []string       `json:"skipped"`
}

// Orchestrator turns raw upload notifications into MediaConvert jobs.
type Orchestrator struct {
	parser    *UploadKeyParser
	submitter JobSubmitter
	cfg       TranscodeConfig
	log       logrus.FieldLogger
}

// NewOrchestrator returns ErrMissingRole when cfg has no MediaConvert role.
func NewOrchestrator(submitter JobSubmitter, cfg *TranscodeConfig, rawPrefix string, log logrus.FieldLogger) (*Orchestrator, error) {
	if cfg == nil || cfg.RoleARN == "" {
		return nil, ErrMissingRole
	}
	return &Orchestrator{
		parser:    NewUploadKeyParser(rawPrefix),
		submitter: submitter,
		cfg:       *cfg,
		log:       log,
	}, nil
}

// HandleBatch submits one job per recognised upload. Records are processed
// concurrently and independently; a key that does not follow the upload
// convention is logged and skipped. Any submission failure fails the whole
// batch so the event source redelivers it.
func (o *Orchestrator) HandleBatch(ctx context.Context, records []events.S3EventRecord) (*IngestResult, error) {
	submitted := make([]*SubmittedJob, len(records))
	skipped := make([]string, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for i, record := range records {
		g.Go(func() error {
			job, err := o.handleRecord(ctx, record)
			if err != nil {
				ingestRecordsTotal.WithLabelValues("failed").Inc()
				return err
			}
			if job == nil {
				ingestRecordsTotal.WithLabelValues("skipped").Inc()
				skipped[i] = record.S3.Object.Key
				return nil
			}
			ingestRecordsTotal.WithLabelValues("submitted").Inc()
			submitted[i] = job
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &IngestResult{Submitted: []SubmittedJob{}, Skipped: []string{}}
	for i := range records {
		if submitted[i] != nil {
			result.Submitted = append(result.Submitted, *submitted[i])
		} else {
			result.Skipped = append(result.Skipped, skipped[i])
		}
	}
	return result, nil
}

func (o *Orchestrator) handleRecord(ctx context.Context, record events.S3EventRecord) (*SubmittedJob, error) {
	key := record.S3.Object.Key
	log := o.log.WithFields(logrus.Fields{"bucket": record.S3.Bucket.Name, "key": key})

	if !strings.HasPrefix(record.EventName, "ObjectCreated:") {
		log.WithField("event_name", record.EventName).Info("ignoring non-create storage event")
		return nil, nil
	}

	upload, ok := o.parser.Parse(key)
	if !ok {
		log.Info("ignoring object outside the upload convention")
		return nil, nil
	}

	// Event keys arrive form-encoded; MediaConvert needs the real object key.
	inputKey := o.parser.Key(upload.CourseID, upload.LessonID, upload.Extension)
	outputPrefix := GenerateOutputPrefix(upload.CourseID, upload.LessonID)
	job := BuildTranscodeJob(JobRequest{
		InputBucket:  record.S3.Bucket.Name,
		InputKey:     inputKey,
		OutputBucket: o.cfg.OutputBucket,
		OutputPrefix: outputPrefix,
		RoleARN:      o.cfg.RoleARN,
		QueueARN:     o.cfg.QueueARN,
		Abr:          o.cfg.Abr,
	})

	jobID, err := o.submitter.Submit(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to submit transcode job for %q: %w", inputKey, err)
	}

	log.WithFields(logrus.Fields{
		"course_id": upload.CourseID,
		"lesson_id": upload.LessonID,
		"job_id":    jobID,
	}).Info("submitted transcode job")

	return &SubmittedJob{JobID: jobID, InputKey: inputKey, OutputPrefix: outputPrefix}, nil
}
