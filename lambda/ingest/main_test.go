package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/sirupsen/logrus/hooks/test"
)

type stubSubmitter struct {
	inputs []string
	err    error
}

func (s *stubSubmitter) Submit(ctx context.Context, job *mediaconvert.CreateJobInput) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.inputs = append(s.inputs, job.UserMetadata[internal.MetadataInputKey])
	return "job-1", nil
}

func record(key string) events.S3EventRecord {
	return events.S3EventRecord{
		EventName: "ObjectCreated:Put",
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: "vod-input"},
			Object: events.S3Object{Key: key},
		},
	}
}

func setOrchestrator(t *testing.T, submitter internal.JobSubmitter) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	log = logger.WithField("service", "test")
	var err error
	orchestrator, err = internal.NewOrchestrator(submitter, &internal.TranscodeConfig{
		RoleARN:      "arn:aws:iam::123456789012:role/mc",
		OutputBucket: "vod-output",
		Abr:          internal.DefaultAbrConstraints,
	}, internal.DefaultRawPrefix, logger)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
}

func TestHandler(t *testing.T) {
	submitter := &stubSubmitter{}
	setOrchestrator(t, submitter)

	event := events.S3Event{Records: []events.S3EventRecord{
		record("uploads/raw/c1/l1.mp4"),
		record("thumbnails/c1/l1.png"),
	}}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(submitter.inputs) != 1 || submitter.inputs[0] != "uploads/raw/c1/l1.mp4" {
		t.Fatalf("expected one submission for the raw upload, got %v", submitter.inputs)
	}
}

func TestHandlerFailsBatch(t *testing.T) {
	boom := errors.New("throttled")
	setOrchestrator(t, &stubSubmitter{err: boom})

	event := events.S3Event{Records: []events.S3EventRecord{record("uploads/raw/c1/l1.mp4")}}
	if err := handler(context.Background(), event); !errors.Is(err, boom) {
		t.Fatalf("expected submission error, got %v", err)
	}
}
