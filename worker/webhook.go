package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/riverqueue/river"
)

const lessonReadyEvent = "lesson.ready"

// WebhookPayload is the JSON body sent to the webhook URI.
type WebhookPayload struct {
	Event          string `json:"event"`
	CourseID       string `json:"courseId"`
	LessonID       string `json:"lessonId"`
	HLSManifestKey string `json:"hlsManifestKey"`
}

// WebhookWorker tells an external system that a lesson can be played.
type WebhookWorker struct {
	river.WorkerDefaults[internal.LessonReadyJobArgs]
	HTTPClient *http.Client
}

// Timeout bounds one webhook delivery.
func (w *WebhookWorker) Timeout(*river.Job[internal.LessonReadyJobArgs]) time.Duration {
	return 30 * time.Second
}

// Work sends a POST request to the configured webhook URI.
func (w *WebhookWorker) Work(ctx context.Context, job *river.Job[internal.LessonReadyJobArgs]) error {
	body, err := json.Marshal(WebhookPayload{
		Event:          lessonReadyEvent,
		CourseID:       job.Args.CourseID,
		LessonID:       job.Args.LessonID,
		HLSManifestKey: job.Args.HLSManifestKey,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.Args.URI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return nil
}
