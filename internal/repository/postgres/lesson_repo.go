package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
)

// LessonRepo implements LessonRepository using PostgreSQL.
// Access-code fields live as columns on the lessons row.
type LessonRepo struct{ db *DB }

// NewLessonRepo constructs a lesson repository.
func NewLessonRepo(db *DB) *LessonRepo { return &LessonRepo{db: db} }

const lessonCols = `id, course_id, title, audio_key, duration_seconds, max_pauses, access_code_enabled, created_at`

// Create inserts a lesson and fills CreatedAt.
func (r *LessonRepo) Create(ctx context.Context, l *model.Lesson) error {
	const q = `
INSERT INTO lessons (id, course_id, title, audio_key, duration_seconds, max_pauses, access_code_enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q,
		l.ID, l.CourseID, l.Title, l.AudioKey, l.DurationSeconds, l.MaxPauses, l.AccessCodeEnabled,
	).Scan(&l.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get loads a lesson by ID.
func (r *LessonRepo) Get(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	q := `SELECT ` + lessonCols + ` FROM lessons WHERE id=$1`
	var l model.Lesson
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(
		&l.ID, &l.CourseID, &l.Title, &l.AudioKey, &l.DurationSeconds, &l.MaxPauses, &l.AccessCodeEnabled, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListByCourse returns the lessons of a course, oldest first.
func (r *LessonRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Lesson, error) {
	q := `SELECT ` + lessonCols + ` FROM lessons WHERE course_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err = rows.Scan(
			&l.ID, &l.CourseID, &l.Title, &l.AudioKey, &l.DurationSeconds, &l.MaxPauses, &l.AccessCodeEnabled, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetAccessCode reads the access-code columns of a lesson.
func (r *LessonRepo) GetAccessCode(ctx context.Context, lessonID uuid.UUID) (model.AccessCodeState, error) {
	const q = `
SELECT access_code_enabled, COALESCE(access_code, ''), COALESCE(access_code_type, ''),
       access_code_expires_at, access_code_generated_at
FROM lessons WHERE id=$1`
	st := model.AccessCodeState{LessonID: lessonID}
	var (
		code, typ   string
		exp, genned pgtype.Timestamptz
	)
	if err := r.db.Pool.QueryRow(ctx, q, lessonID).Scan(&st.Enabled, &code, &typ, &exp, &genned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AccessCodeState{}, errs.ErrNotFound
		}
		return model.AccessCodeState{}, err
	}
	if code != "" {
		st.Code = &code
	}
	if typ != "" {
		ct := model.CodeType(typ)
		st.Type = &ct
	}
	st.ExpiresAt = timePtr(exp)
	st.GeneratedAt = timePtr(genned)
	return st, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// SaveAccessCode overwrites the stored code in a single statement.
func (r *LessonRepo) SaveAccessCode(ctx context.Context, lessonID uuid.UUID, code model.GeneratedCode) error {
	const q = `
UPDATE lessons
SET access_code=$2, access_code_type=$3, access_code_expires_at=$4, access_code_generated_at=$5
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, lessonID, code.Code, string(code.Type), code.ExpiresAt, code.GeneratedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetAccessCodeEnabled updates only the enabled flag.
func (r *LessonRepo) SetAccessCodeEnabled(ctx context.Context, lessonID uuid.UUID, enabled bool) error {
	const q = `UPDATE lessons SET access_code_enabled=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, lessonID, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ClearAccessCode resets the code fields to the absent state, leaving the enabled flag alone.
func (r *LessonRepo) ClearAccessCode(ctx context.Context, lessonID uuid.UUID) error {
	const q = `
UPDATE lessons
SET access_code=NULL, access_code_type=NULL, access_code_expires_at=NULL, access_code_generated_at=NULL
WHERE id=$1 AND access_code IS NOT NULL`
	tag, err := r.db.Pool.Exec(ctx, q, lessonID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	const exists = `SELECT EXISTS (SELECT 1 FROM lessons WHERE id=$1)`
	var found bool
	if err := r.db.Pool.QueryRow(ctx, exists, lessonID).Scan(&found); err != nil {
		return err
	}
	if !found {
		return errs.ErrNotFound
	}
	return errs.ErrNoAccessCode
}
