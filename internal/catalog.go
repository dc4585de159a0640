package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLessonNotFound = errors.New("lesson not found")

// Lesson is the slice of a catalog lesson record the pipeline reads. The
// pipeline only ever writes HLSManifestKey and UpdatedAt.
type Lesson struct {
	CourseID       string
	LessonID       string
	Title          string
	HLSManifestKey string
	UpdatedAt      time.Time
}

// CatalogStore persists lesson playback state. Implementations must never
// create a lesson: SetManifestKey on a missing lesson returns
// ErrLessonNotFound and changes nothing.
type CatalogStore interface {
	SetManifestKey(ctx context.Context, courseID, lessonID, manifestKey string, updatedAt time.Time) error
	GetLesson(ctx context.Context, courseID, lessonID string) (*Lesson, error)
}

// OpenCatalog returns the store selected by cfg. pool is only used by the
// Postgres backend and may be nil for DynamoDB.
func OpenCatalog(ctx context.Context, cfg *CatalogConfig, pool *pgxpool.Pool) (CatalogStore, error) {
	switch cfg.Backend {
	case CatalogBackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("%w: postgres catalog needs a database pool", ErrConfiguration)
		}
		return NewPostgresCatalog(pool), nil
	case CatalogBackendDynamoDB:
		awsCfg, err := LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		return NewDynamoCatalog(dynamodb.NewFromConfig(awsCfg), cfg.Table), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrPanicInvalidCatalog, cfg.Backend)
	}
}
