package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/repository"
	"github.com/shadanga/kriya/internal/storage"
)

// LessonService covers lesson authoring, enrollment and gated audio access.
type LessonService interface {
	// Create stores a new lesson. The access code starts disabled and empty.
	Create(ctx context.Context, l model.Lesson) (*model.Lesson, error)
	// Get loads one lesson.
	Get(ctx context.Context, id uuid.UUID) (*model.Lesson, error)
	// ListByCourse lists lessons of a course.
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Lesson, error)
	// Enroll grants a user access to a course's audio.
	Enroll(ctx context.Context, userID, courseID uuid.UUID) error
	// OpenAudio streams a lesson's audio to an enrolled learner or a lesson manager.
	OpenAudio(ctx context.Context, userID uuid.UUID, role model.Role, lessonID uuid.UUID) (io.ReadCloser, int64, error)
}

type LessonServiceImpl struct {
	lessons     repository.LessonRepository
	enrollments repository.EnrollmentRepository
	assets      storage.AssetStore
}

// NewLessonService constructs LessonService.
func NewLessonService(lessons repository.LessonRepository, enrollments repository.EnrollmentRepository, assets storage.AssetStore) *LessonServiceImpl {
	return &LessonServiceImpl{lessons: lessons, enrollments: enrollments, assets: assets}
}

// Create validates and inserts a lesson with a fresh ID.
func (s *LessonServiceImpl) Create(ctx context.Context, l model.Lesson) (*model.Lesson, error) {
	l.Title = strings.TrimSpace(l.Title)
	switch {
	case l.CourseID == uuid.Nil:
		return nil, fmt.Errorf("%w: empty course id", errs.ErrValidation)
	case l.Title == "":
		return nil, fmt.Errorf("%w: empty title", errs.ErrValidation)
	case l.AudioKey == "":
		return nil, fmt.Errorf("%w: empty audio key", errs.ErrValidation)
	case l.DurationSeconds < 0 || l.MaxPauses < 0:
		return nil, fmt.Errorf("%w: negative duration or pause budget", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	l.ID = id
	l.AccessCodeEnabled = false
	if err := s.lessons.Create(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Get loads one lesson.
func (s *LessonServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	return s.lessons.Get(ctx, id)
}

// ListByCourse lists lessons of a course.
func (s *LessonServiceImpl) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Lesson, error) {
	return s.lessons.ListByCourse(ctx, courseID)
}

// Enroll grants course access.
func (s *LessonServiceImpl) Enroll(ctx context.Context, userID, courseID uuid.UUID) error {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return fmt.Errorf("%w: empty user/course id", errs.ErrValidation)
	}
	return s.enrollments.Enroll(ctx, userID, courseID)
}

// OpenAudio checks enrollment for learners, then opens the stored asset.
func (s *LessonServiceImpl) OpenAudio(ctx context.Context, userID uuid.UUID, role model.Role, lessonID uuid.UUID) (io.ReadCloser, int64, error) {
	l, err := s.lessons.Get(ctx, lessonID)
	if err != nil {
		return nil, 0, err
	}
	if !role.ManagesLessons() {
		ok, err := s.enrollments.IsEnrolled(ctx, userID, l.CourseID)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, errs.ErrNotEnrolled
		}
	}
	return s.assets.Open(ctx, l.AudioKey)
}
