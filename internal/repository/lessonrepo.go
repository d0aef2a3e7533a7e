package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/model"
)

// LessonRepository stores lessons and their access-code columns.
type LessonRepository interface {
	// Create inserts a lesson.
	Create(ctx context.Context, l *model.Lesson) error
	// Get loads a lesson by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Lesson, error)
	// ListByCourse returns lessons of a course ordered by creation time.
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Lesson, error)

	// GetAccessCode reads the access-code columns of a lesson.
	GetAccessCode(ctx context.Context, lessonID uuid.UUID) (model.AccessCodeState, error)
	// SaveAccessCode overwrites the code, type, expiry and generation time (last writer wins).
	SaveAccessCode(ctx context.Context, lessonID uuid.UUID, code model.GeneratedCode) error
	// SetAccessCodeEnabled flips the enabled flag without touching the stored code.
	SetAccessCodeEnabled(ctx context.Context, lessonID uuid.UUID, enabled bool) error
	// ClearAccessCode erases code fields; errs.ErrNoAccessCode when none is stored.
	ClearAccessCode(ctx context.Context, lessonID uuid.UUID) error
}
