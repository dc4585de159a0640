package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
)

// JobInserter is satisfied by an insert-only river client.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

type LessonReader interface {
	GetLesson(ctx context.Context, courseID, lessonID string) (*internal.Lesson, error)
}

type UploadIssuer interface {
	Issue(ctx context.Context, courseID, lessonID, extension string) (*internal.PresignedUpload, error)
}

// Server receives storage and transcode events and hands out playback and
// upload credentials.
type Server struct {
	inserter   JobInserter
	lessons    LessonReader
	access     *internal.AccessIssuer
	uploads    UploadIssuer
	verifier   *internal.TokenVerifier
	validator  *internal.EventValidator
	eventToken string
	log        logrus.FieldLogger
}

type ServerDeps struct {
	Inserter   JobInserter
	Lessons    LessonReader
	Access     *internal.AccessIssuer
	Uploads    UploadIssuer
	Verifier   *internal.TokenVerifier
	Validator  *internal.EventValidator
	EventToken string
	Log        logrus.FieldLogger
}

// NewServer creates a new Server instance.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		inserter:   deps.Inserter,
		lessons:    deps.Lessons,
		access:     deps.Access,
		uploads:    deps.Uploads,
		verifier:   deps.Verifier,
		validator:  deps.Validator,
		eventToken: deps.EventToken,
		log:        deps.Log,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type acceptedResponse struct {
	DeliveryID string `json:"deliveryId"`
	Enqueued   bool   `json:"enqueued"`
}

type accessResponse struct {
	KeyID     string    `json:"keyId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type uploadURLRequest struct {
	Extension string `json:"extension"`
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/events", func(r chi.Router) {
		r.Use(s.requireEventToken)
		r.Post("/uploads", s.UploadEvents)
		r.Post("/transcode", s.TranscodeEvents)
	})

	r.Route("/courses/{courseId}", func(r chi.Router) {
		r.Get("/access", s.CourseAccess)
		r.Get("/lessons/{lessonId}/manifest-url", s.ManifestURL)
		r.Post("/lessons/{lessonId}/upload-url", s.UploadURL)
	})
	return r
}

// UploadEvents handles POST /events/uploads. The whole notification becomes
// one ingest job so a failed submission redelivers the batch.
func (s *Server) UploadEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := s.validate(w, r, "uploads")
	if !ok {
		return
	}
	var event events.S3Event
	if err := json.Unmarshal(body, &event); err != nil {
		s.reject(w, "uploads", http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	deliveryID := uuid.New()
	args := internal.IngestJobArgs{DeliveryID: deliveryID, Records: event.Records}
	if _, err := s.inserter.Insert(r.Context(), args, nil); err != nil {
		s.log.WithError(err).WithField("delivery_id", deliveryID).Error("failed to enqueue ingest job")
		s.reject(w, "uploads", http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue event")
		return
	}

	s.log.WithFields(logrus.Fields{"delivery_id": deliveryID, "records": len(event.Records)}).Info("enqueued upload event")
	internal.IntakeEventsTotal.WithLabelValues("uploads", "enqueued").Inc()
	writeJSON(w, http.StatusAccepted, acceptedResponse{DeliveryID: deliveryID.String(), Enqueued: true})
}

// TranscodeEvents handles POST /events/transcode. Only terminal job states
// are enqueued.
func (s *Server) TranscodeEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := s.validate(w, r, "transcode")
	if !ok {
		return
	}
	var event events.CloudWatchEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.reject(w, "transcode", http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}
	change, err := internal.JobStateChangeFromEvent(event)
	if err != nil {
		s.reject(w, "transcode", http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	deliveryID := uuid.New()
	log := s.log.WithFields(logrus.Fields{"delivery_id": deliveryID, "job_id": change.JobID, "status": change.Status})

	switch types.JobStatus(change.Status) {
	case types.JobStatusComplete, types.JobStatusError:
	default:
		log.Debug("acknowledging non-terminal job state")
		internal.IntakeEventsTotal.WithLabelValues("transcode", "ignored").Inc()
		writeJSON(w, http.StatusAccepted, acceptedResponse{DeliveryID: deliveryID.String()})
		return
	}

	args := internal.ReconcileJobArgs{DeliveryID: deliveryID, Event: *change}
	if _, err := s.inserter.Insert(r.Context(), args, nil); err != nil {
		log.WithError(err).Error("failed to enqueue reconcile job")
		s.reject(w, "transcode", http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue event")
		return
	}

	log.Info("enqueued transcode event")
	internal.IntakeEventsTotal.WithLabelValues("transcode", "enqueued").Inc()
	writeJSON(w, http.StatusAccepted, acceptedResponse{DeliveryID: deliveryID.String(), Enqueued: true})
}

// CourseAccess handles GET /courses/{courseId}/access by setting CloudFront
// signed cookies for every lesson in the course.
func (s *Server) CourseAccess(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseId")
	if _, ok := s.authorize(w, r, courseID, ""); !ok {
		return
	}

	signed, err := s.access.CourseCookies(courseID)
	if err != nil {
		s.log.WithError(err).WithField("course_id", courseID).Error("failed to sign cookies")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue access")
		return
	}
	for _, c := range signed.Cookies {
		http.SetCookie(w, c)
	}
	writeJSON(w, http.StatusOK, accessResponse{KeyID: signed.KeyID, ExpiresAt: signed.ExpiresAt})
}

// ManifestURL handles GET /courses/{courseId}/lessons/{lessonId}/manifest-url.
func (s *Server) ManifestURL(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID := chi.URLParam(r, "courseId"), chi.URLParam(r, "lessonId")
	if _, ok := s.authorize(w, r, courseID, ""); !ok {
		return
	}

	lesson, err := s.lessons.GetLesson(r.Context(), courseID, lessonID)
	if errors.Is(err, internal.ErrLessonNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "lesson not found")
		return
	} else if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"course_id": courseID, "lesson_id": lessonID}).Error("failed to read lesson")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read lesson")
		return
	}
	if lesson.HLSManifestKey == "" {
		writeError(w, http.StatusConflict, "NOT_READY", "lesson has not finished transcoding")
		return
	}

	signed, err := s.access.ManifestURL(lesson.HLSManifestKey)
	if err != nil {
		s.log.WithError(err).Error("failed to sign manifest URL")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to sign manifest URL")
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

// UploadURL handles POST /courses/{courseId}/lessons/{lessonId}/upload-url.
func (s *Server) UploadURL(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID := chi.URLParam(r, "courseId"), chi.URLParam(r, "lessonId")
	if _, ok := s.authorize(w, r, courseID, internal.RoleInstructor); !ok {
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}

	upload, err := s.uploads.Issue(r.Context(), courseID, lessonID, strings.ToLower(req.Extension))
	switch {
	case errors.Is(err, internal.ErrUnsupportedExtension), errors.Is(err, internal.ErrInvalidLessonID):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	case err != nil:
		s.log.WithError(err).Error("failed to presign upload")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to presign upload")
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request, courseID, role string) (*internal.ViewerClaims, bool) {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, err := s.verifier.Authorize(strings.TrimSpace(token), courseID, role)
	switch {
	case errors.Is(err, internal.ErrNotEntitled):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		return nil, false
	case err != nil:
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
		return nil, false
	}
	return claims, true
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request, kind string) ([]byte, bool) {
	body, err := s.validator.Validate(r)
	if err != nil {
		s.reject(w, kind, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return nil, false
	}
	return body, true
}

func (s *Server) reject(w http.ResponseWriter, kind string, status int, code, message string) {
	internal.IntakeEventsTotal.WithLabelValues(kind, "rejected").Inc()
	writeError(w, status, code, message)
}

func (s *Server) requireEventToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.eventToken != "" {
			got := r.Header.Get("X-Event-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.eventToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid event token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
