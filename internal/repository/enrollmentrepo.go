package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// EnrollmentRepository records which learners may fetch a course's audio.
type EnrollmentRepository interface {
	// Enroll grants a user access to a course. Idempotent.
	Enroll(ctx context.Context, userID, courseID uuid.UUID) error
	// IsEnrolled reports whether the user is enrolled in the course.
	IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
}
