package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog stores lessons in the lessons table created by MigrateUp.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog returns a catalog backed by the lessons table.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// SetManifestKey updates an existing lesson row and never inserts one.
func (c *PostgresCatalog) SetManifestKey(ctx context.Context, courseID, lessonID, manifestKey string, updatedAt time.Time) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE lessons SET hls_manifest_key = $3, updated_at = $4
		 WHERE course_id = $1 AND lesson_id = $2`,
		courseID, lessonID, manifestKey, updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrLessonNotFound, courseID, lessonID)
	}
	return nil
}

// GetLesson returns ErrLessonNotFound when no row matches.
func (c *PostgresCatalog) GetLesson(ctx context.Context, courseID, lessonID string) (*Lesson, error) {
	lesson := &Lesson{CourseID: courseID, LessonID: lessonID}
	var manifestKey *string
	err := c.pool.QueryRow(ctx,
		`SELECT title, hls_manifest_key, updated_at FROM lessons
		 WHERE course_id = $1 AND lesson_id = $2`,
		courseID, lessonID,
	).Scan(&lesson.Title, &manifestKey, &lesson.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrLessonNotFound, courseID, lessonID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	if manifestKey != nil {
		lesson.HLSManifestKey = *manifestKey
	}
	return lesson, nil
}

// CreateLesson inserts a lesson record. Catalog CRUD lives outside this
// service; this exists for seeding and tests.
func (c *PostgresCatalog) CreateLesson(ctx context.Context, courseID, lessonID, title string) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO lessons (course_id, lesson_id, title) VALUES ($1, $2, $3)`,
		courseID, lessonID, title,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lesson: %w", err)
	}
	return nil
}
