package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// EnrollmentRepo implements EnrollmentRepository using PostgreSQL.
type EnrollmentRepo struct{ db *DB }

// NewEnrollmentRepo constructs an enrollment repository.
func NewEnrollmentRepo(db *DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

// Enroll inserts an enrollment, ignoring duplicates.
func (r *EnrollmentRepo) Enroll(ctx context.Context, userID, courseID uuid.UUID) error {
	const q = `
INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)
ON CONFLICT (user_id, course_id) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, userID, courseID)
	return err
}

// IsEnrolled reports whether an enrollment row exists.
func (r *EnrollmentRepo) IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id=$1 AND course_id=$2)`
	var ok bool
	err := r.db.Pool.QueryRow(ctx, q, userID, courseID).Scan(&ok)
	return ok, err
}
