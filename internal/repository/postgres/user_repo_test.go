package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "username", "role", "password_hash", "created_at"}

const phc = "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"

func TestUserRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "sadhaka", Role: model.RoleLearner, PasswordHash: phc}
	created := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO users \(id, username, role, password_hash\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING created_at`).
		WithArgs(u.ID, u.Username, "learner", phc).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, created, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, "learner", phc).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Lookups(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	cases := []struct {
		name  string
		query string
		arg   any
		get   func(*UserRepo) (*model.User, error)
	}{
		{"by id", `FROM users WHERE id=\$1`, id, func(r *UserRepo) (*model.User, error) { return r.GetByID(context.Background(), id) }},
		{"by username", `FROM users WHERE username=\$1`, "guru", func(r *UserRepo) (*model.User, error) {
			return r.GetByUsername(context.Background(), "guru")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newDB(t)
			defer mock.Close()
			r := NewUserRepo(db)

			mock.ExpectQuery(`SELECT id, username, role, password_hash, created_at ` + tc.query).
				WithArgs(tc.arg).
				WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "guru", "facilitator", phc, time.Now()))
			u, err := tc.get(r)
			require.NoError(t, err)
			require.Equal(t, id, u.ID)
			require.Equal(t, "guru", u.Username)
			require.Equal(t, model.RoleFacilitator, u.Role)
			require.Equal(t, phc, u.PasswordHash)

			mock.ExpectQuery(tc.query).WithArgs(tc.arg).WillReturnError(pgx.ErrNoRows)
			_, err = tc.get(r)
			require.ErrorIs(t, err, errs.ErrNotFound)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepo_UpdatePasswordHash(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE users SET password_hash=\$2 WHERE id=\$1`).
		WithArgs(id, phc).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePasswordHash(context.Background(), id, phc))

	mock.ExpectExec(`UPDATE users`).
		WithArgs(id, phc).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdatePasswordHash(context.Background(), id, phc), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
