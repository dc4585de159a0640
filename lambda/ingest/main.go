// Command ingest is the Lambda entry point for S3 upload notifications. Each
// recognised raw upload becomes one MediaConvert job.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/sirupsen/logrus"
)

// Clients are built once per cold start so the resolved MediaConvert
// endpoint is reused across invocations.
var (
	log          *logrus.Entry
	orchestrator *internal.Orchestrator
)

func setup() {
	log = internal.NewLogger("ingest-lambda")
	cfg := internal.NewIngestLambdaConfigFromEnv()

	awsCfg, err := internal.LoadAWSConfig(context.Background())
	if err != nil {
		log.WithError(err).Fatal("failed to load AWS config")
	}
	submitter := internal.NewMediaConvertClient(awsCfg, cfg.Transcode.Endpoint)
	orchestrator, err = internal.NewOrchestrator(submitter, cfg.Transcode, cfg.RawPrefix, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create orchestrator")
	}
}

func main() {
	setup()
	lambda.Start(handler)
}

// handler fails the invocation when any record fails so Lambda retries the
// whole notification.
func handler(ctx context.Context, event events.S3Event) error {
	result, err := orchestrator.HandleBatch(ctx, event.Records)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"submitted": len(result.Submitted),
		"skipped":   len(result.Skipped),
	}).Info("handled upload notification")
	return nil
}
