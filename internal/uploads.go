package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported upload extension")
	ErrInvalidLessonID      = errors.New("course or lesson id cannot be used in an upload key")
)

var uploadContentTypes = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"m4v":  "video/x-m4v",
}

// ObjectPresigner is satisfied by *s3.PresignClient.
type ObjectPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PresignedUpload lets an instructor PUT a raw lesson video straight into
// the upload bucket. Headers must be sent with the request unchanged.
type PresignedUpload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// UploadURLIssuer presigns PUT requests for keys that follow the raw upload
// convention, so every upload it authorises is picked up by ingestion.
type UploadURLIssuer struct {
	presigner ObjectPresigner
	bucket    string
	parser    *UploadKeyParser
	ttl       time.Duration
	now       func() time.Time
}

// NewS3Presigner creates an S3 presign client from cfg.
func NewS3Presigner(cfg aws.Config) *s3.PresignClient {
	return s3.NewPresignClient(s3.NewFromConfig(cfg))
}

// NewUploadURLIssuer creates an issuer for uploads into cfg.Bucket.
func NewUploadURLIssuer(presigner ObjectPresigner, cfg *UploadConfig, rawPrefix string) *UploadURLIssuer {
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = DefaultUploadURLTTL
	}
	return &UploadURLIssuer{
		presigner: presigner,
		bucket:    cfg.Bucket,
		parser:    NewUploadKeyParser(rawPrefix),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue presigns a PUT for the raw upload key of a lesson.
func (u *UploadURLIssuer) Issue(ctx context.Context, courseID, lessonID, extension string) (*PresignedUpload, error) {
	contentType, ok := uploadContentTypes[extension]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, extension)
	}

	key := u.parser.Key(courseID, lessonID, extension)
	parsed, ok := u.parser.Parse(key)
	if !ok || parsed.CourseID != courseID || parsed.LessonID != lessonID {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidLessonID, courseID, lessonID)
	}

	req, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(u.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	headers := map[string]string{}
	for name := range req.SignedHeader {
		if http.CanonicalHeaderKey(name) == "Host" {
			continue
		}
		headers[name] = req.SignedHeader.Get(name)
	}
	credentialsIssuedTotal.WithLabelValues("upload").Inc()
	return &PresignedUpload{
		URL:       req.URL,
		Method:    req.Method,
		Key:       key,
		Headers:   headers,
		ExpiresAt: u.now().Add(u.ttl).UTC().Truncate(time.Second),
	}, nil
}
