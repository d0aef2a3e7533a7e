package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG keeps one attempt_limiter row per (subject, ip). The failure window is
// fixed from the first failure and a block clears the counter, as in Redis.
type PG struct {
	pool   pgxQuerier
	policy Policy
	now    func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter over a pool or a single connection.
func NewPG(q pgxQuerier, p Policy) *PG {
	return &PG{pool: q, policy: p, now: time.Now}
}

func (l *PG) Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	var until time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT blocked_until FROM attempt_limiter WHERE subject=$1 AND ip_hash=$2`,
		subject, ipHash).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if left := until.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

func (l *PG) Success(ctx context.Context, subject string, ipHash []byte) error {
	_, err := l.pool.Exec(ctx, `DELETE FROM attempt_limiter WHERE subject=$1 AND ip_hash=$2`, subject, ipHash)
	return err
}

func (l *PG) Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	now := l.now()
	const count = `
INSERT INTO attempt_limiter AS a (subject, ip_hash, fail_count, window_start)
VALUES ($1, $2, 1, $3)
ON CONFLICT (subject, ip_hash) DO UPDATE SET
  fail_count   = CASE WHEN a.window_start <= $4 THEN 1 ELSE a.fail_count + 1 END,
  window_start = CASE WHEN a.window_start <= $4 THEN $3 ELSE a.window_start END
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, count, subject, ipHash, now, now.Add(-l.policy.Window)).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}
	const block = `
UPDATE attempt_limiter SET blocked_until=$3, fail_count=0, window_start=$4
WHERE subject=$1 AND ip_hash=$2`
	if _, err := l.pool.Exec(ctx, block, subject, ipHash, now.Add(l.policy.BlockFor), now); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
