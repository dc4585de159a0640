package internal_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/lesson-video-pipeline/internal"
)

func testUploadIssuer() *internal.UploadURLIssuer {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	return internal.NewUploadURLIssuer(internal.NewS3Presigner(cfg), &internal.UploadConfig{Bucket: "vod-input"}, internal.DefaultRawPrefix)
}

func TestUploadURLIssuer(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	issuer := testUploadIssuer()

	upload, err := issuer.Issue(context.Background(), "course-1", "lesson-1", "mp4")
	if err != nil {
		t.Fatalf("failed to issue upload URL: %v", err)
	}
	exam.Equal(e, env, "PUT", upload.Method)
	exam.Equal(e, env, "uploads/raw/course-1/lesson-1.mp4", upload.Key)
	exam.Equal(e, env, "video/mp4", upload.Headers["Content-Type"])

	u, err := url.Parse(upload.URL)
	if err != nil {
		t.Fatalf("presigned URL does not parse: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/uploads/raw/course-1/lesson-1.mp4") {
		t.Fatalf("unexpected path %q", u.Path)
	}
	exam.Equal(e, env, "900", u.Query().Get("X-Amz-Expires"))

	parsed, ok := internal.NewUploadKeyParser(internal.DefaultRawPrefix).Parse(upload.Key)
	exam.Equal(e, env, true, ok)
	exam.Equal(e, env, internal.UploadKey{CourseID: "course-1", LessonID: "lesson-1", Extension: "mp4"}, parsed)

	if upload.ExpiresAt.Before(time.Now().Add(14 * time.Minute)) {
		t.Fatalf("expiry too early: %v", upload.ExpiresAt)
	}
}

func TestUploadURLIssuerRejects(t *testing.T) {
	issuer := testUploadIssuer()
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "c1", "l1", "exe"); !errors.Is(err, internal.ErrUnsupportedExtension) {
		t.Fatalf("expected ErrUnsupportedExtension, got %v", err)
	}
	for _, id := range [][2]string{{"c/1", "l1"}, {"c1", "l/1"}, {"c1", ""}, {"c 1", "l+1"}} {
		if _, err := issuer.Issue(ctx, id[0], id[1], "mp4"); !errors.Is(err, internal.ErrInvalidLessonID) {
			t.Fatalf("expected ErrInvalidLessonID for %q, got %v", id, err)
		}
	}
}
