package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeBatchHandler struct {
	records []events.S3EventRecord
	err     error
}

func (f *fakeBatchHandler) HandleBatch(ctx context.Context, records []events.S3EventRecord) (*internal.IngestResult, error) {
	f.records = records
	if f.err != nil {
		return nil, f.err
	}
	return &internal.IngestResult{}, nil
}

type fakeHandler struct {
	result *internal.ReconcileResult
	err    error
}

func (f *fakeHandler) Handle(ctx context.Context, ev *internal.JobStateChange) (*internal.ReconcileResult, error) {
	return f.result, f.err
}

type fakeInserter struct {
	mu   sync.Mutex
	jobs []river.JobArgs
	err  error
}

func (f *fakeInserter) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.jobs = append(f.jobs, args)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{Kind: args.Kind()}}, nil
}

func newJob[T river.JobArgs](args T) *river.Job[T] {
	return &river.Job[T]{
		JobRow: &rivertype.JobRow{ID: 7, Kind: args.Kind(), Attempt: 1, MaxAttempts: 10},
		Args:   args,
	}
}

func TestIngestWorker(t *testing.T) {
	records := []events.S3EventRecord{{EventName: "ObjectCreated:Put"}}

	t.Run("success", func(t *testing.T) {
		handler := &fakeBatchHandler{}
		w := &IngestWorker{Orchestrator: handler}
		if err := w.Work(context.Background(), newJob(internal.IngestJobArgs{Records: records})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(handler.records) != 1 {
			t.Fatalf("expected records to be passed through")
		}
	})

	t.Run("transient failure retries", func(t *testing.T) {
		boom := errors.New("throttled")
		w := &IngestWorker{Orchestrator: &fakeBatchHandler{err: boom}}
		err := w.Work(context.Background(), newJob(internal.IngestJobArgs{Records: records}))
		if !errors.Is(err, boom) {
			t.Fatalf("expected throttled error, got %v", err)
		}
	})

	t.Run("configuration error cancels", func(t *testing.T) {
		w := &IngestWorker{Orchestrator: &fakeBatchHandler{err: internal.ErrMissingRole}}
		err := w.Work(context.Background(), newJob(internal.IngestJobArgs{Records: records}))
		if !errors.Is(err, internal.ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
		if err == internal.ErrMissingRole {
			t.Fatalf("expected error to be wrapped by JobCancel")
		}
	})
}

func TestReconcileWorker(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	applied := &internal.ReconcileResult{
		Outcome:     internal.ReconcileApplied,
		CourseID:    "c1",
		LessonID:    "l1",
		ManifestKey: "courses/c1/l1/l1.m3u8",
	}
	logger, _ := test.NewNullLogger()

	tests := []struct {
		loc         exam.Loc
		name        string
		result      *internal.ReconcileResult
		handlerErr  error
		webhookURL  string
		insertErr   error
		wantErr     bool
		wantWebhook bool
	}{
		{loc: exam.Here(), name: "applied with webhook", result: applied, webhookURL: "https://hooks.example.com/ready", wantWebhook: true},
		{loc: exam.Here(), name: "applied without webhook", result: applied},
		{loc: exam.Here(), name: "ignored", result: &internal.ReconcileResult{Outcome: internal.ReconcileIgnored}, webhookURL: "https://hooks.example.com/ready"},
		{loc: exam.Here(), name: "lesson missing", result: &internal.ReconcileResult{Outcome: internal.ReconcileLessonMissing}, webhookURL: "https://hooks.example.com/ready"},
		{loc: exam.Here(), name: "handler error", handlerErr: errors.New("catalog unavailable"), webhookURL: "https://hooks.example.com/ready", wantErr: true},
		{loc: exam.Here(), name: "enqueue error", result: applied, webhookURL: "https://hooks.example.com/ready", insertErr: errors.New("db down"), wantErr: true},
	}
	for _, tt := range tests {
		e.Run(tt.name, func(e exam.E) {
			e.Log("Running test at", tt.loc)
			inserter := &fakeInserter{err: tt.insertErr}
			w := &ReconcileWorker{
				Reconciler: &fakeHandler{result: tt.result, err: tt.handlerErr},
				Inserter:   inserter,
				WebhookURL: tt.webhookURL,
				Log:        logger,
			}
			err := w.Work(context.Background(), newJob(internal.ReconcileJobArgs{Event: internal.JobStateChange{JobID: "j1", Status: "COMPLETE"}}))
			exam.Equal(e, env, tt.wantErr, err != nil)
			if !tt.wantWebhook {
				exam.Equal(e, env, 0, len(inserter.jobs))
				return
			}
			exam.Equal(e, env, 1, len(inserter.jobs))
			got, ok := inserter.jobs[0].(internal.LessonReadyJobArgs)
			exam.Equal(e, env, true, ok)
			exam.Equal(e, env, internal.LessonReadyJobArgs{
				URI:            "https://hooks.example.com/ready",
				CourseID:       "c1",
				LessonID:       "l1",
				HLSManifestKey: "courses/c1/l1/l1.m3u8",
			}, got)
		})
	}
}

func TestWebhookWorker(t *testing.T) {
	var (
		mu       sync.Mutex
		received WebhookPayload
		status   = http.StatusNoContent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	w := &WebhookWorker{HTTPClient: srv.Client()}
	args := internal.LessonReadyJobArgs{URI: srv.URL, CourseID: "c1", LessonID: "l1", HLSManifestKey: "courses/c1/l1/l1.m3u8"}

	if err := w.Work(context.Background(), newJob(args)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mu.Lock()
	got := received
	mu.Unlock()
	want := WebhookPayload{Event: "lesson.ready", CourseID: "c1", LessonID: "l1", HLSManifestKey: "courses/c1/l1/l1.m3u8"}
	if got != want {
		t.Fatalf("expected payload %+v, got %+v", want, got)
	}

	mu.Lock()
	status = http.StatusBadGateway
	mu.Unlock()
	if err := w.Work(context.Background(), newJob(args)); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestErrorHandler(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := &ErrorHandler{Log: logger}

	tests := []struct {
		attempt   int
		wantFinal bool
	}{
		{attempt: 1, wantFinal: false},
		{attempt: 10, wantFinal: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			hook.Reset()
			job := &rivertype.JobRow{ID: 3, Kind: "reconcile", Attempt: tt.attempt, MaxAttempts: 10}
			if res := h.HandleError(context.Background(), job, errors.New("boom")); res != nil {
				t.Fatalf("expected nil result, got %+v", res)
			}
			entry := hook.LastEntry()
			wantLevel := logrus.WarnLevel
			if tt.wantFinal {
				wantLevel = logrus.ErrorLevel
			}
			if entry == nil || entry.Level != wantLevel {
				t.Fatalf("expected a %s log entry", wantLevel)
			}
			if entry.Data["final"] != tt.wantFinal {
				t.Fatalf("expected final=%v, got %v", tt.wantFinal, entry.Data["final"])
			}
		})
	}

	hook.Reset()
	job := &rivertype.JobRow{ID: 4, Kind: "ingest", Attempt: 2, MaxAttempts: 10}
	if res := h.HandlePanic(context.Background(), job, "nil map", "goroutine 1"); res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}
	if hook.LastEntry().Data["panic"] != "nil map" {
		t.Fatalf("expected panic value in log")
	}
}
