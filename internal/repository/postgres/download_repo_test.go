package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
)

func TestDownloadRepo_Devices(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDownloadRepo(db)
	ctx := context.Background()
	user, dev := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectExec(`INSERT INTO devices \(user_id, device_id, name\)`).
		WithArgs(user, dev, "phone").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.UpsertDevice(ctx, model.Device{UserID: user, DeviceID: dev, Name: "phone"}))

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM devices WHERE user_id=\$1 AND device_id=\$2\)`).
		WithArgs(user, dev).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := r.DeviceExists(ctx, user, dev)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDownloadRepo_Registrations(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDownloadRepo(db)
	ctx := context.Background()
	user, lesson, dev := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	hash := make([]byte, 32)

	mock.ExpectExec(`INSERT INTO download_registrations \(user_id, lesson_id, device_id, key_hash\)`).
		WithArgs(user, lesson, dev, hash).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.UpsertRegistration(ctx, model.DownloadRegistration{
		UserID: user, LessonID: lesson, DeviceID: dev, KeyHash: hash,
	}))

	mock.ExpectExec(`DELETE FROM download_registrations WHERE user_id=\$1 AND lesson_id=\$2 AND device_id=\$3`).
		WithArgs(user, lesson, dev).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.DeleteRegistration(ctx, user, lesson, dev))

	mock.ExpectExec(`DELETE FROM download_registrations WHERE user_id=\$1 AND lesson_id=\$2`).
		WithArgs(user, lesson, dev).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.DeleteRegistration(ctx, user, lesson, dev), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM download_registrations WHERE user_id=\$1 AND device_id=\$2`).
		WithArgs(user, dev).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := r.DeleteDeviceRegistrations(ctx, user, dev)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	mock.ExpectExec(`DELETE FROM download_registrations WHERE user_id=\$1 AND device_id=\$2`).
		WithArgs(user, dev).
		WillReturnError(errors.New("boom"))
	_, err = r.DeleteDeviceRegistrations(ctx, user, dev)
	require.Error(t, err)
}

func TestEnrollmentRepo(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEnrollmentRepo(db)
	ctx := context.Background()
	user, course := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectExec(`INSERT INTO enrollments \(user_id, course_id\) VALUES \(\$1, \$2\) ON CONFLICT`).
		WithArgs(user, course).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.NoError(t, r.Enroll(ctx, user, course))

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM enrollments`).
		WithArgs(user, course).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	ok, err := r.IsEnrolled(ctx, user, course)
	require.NoError(t, err)
	require.False(t, ok)
}
