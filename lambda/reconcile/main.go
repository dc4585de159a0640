// Command reconcile is the Lambda entry point for MediaConvert job state
// change events delivered by EventBridge.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/sirupsen/logrus"
)

var (
	log        *logrus.Entry
	reconciler *internal.Reconciler
)

func setup() {
	log = internal.NewLogger("reconcile-lambda")
	cfg := internal.NewReconcileLambdaConfigFromEnv()

	catalog, err := internal.OpenCatalog(context.Background(), cfg.Catalog, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to open catalog")
	}
	reconciler = internal.NewReconciler(catalog, log)
}

func main() {
	setup()
	lambda.Start(handler)
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	change, err := internal.JobStateChangeFromEvent(event)
	if err != nil {
		return err
	}
	result, err := reconciler.Handle(ctx, change)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"job_id":  change.JobID,
		"outcome": result.Outcome,
	}).Info("handled job state change")
	return nil
}
