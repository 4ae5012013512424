package repository

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/internal/common"
)

// LockRepository is the single-flight guard for the interactive path: at
// most one generation per job across all API instances, enforced with a
// Postgres advisory lock held on a dedicated pool connection.
type LockRepository interface {
	// TryLockJob attempts a non-blocking advisory lock on the job.
	// Returns (nil, false, nil) when another generation holds it.
	TryLockJob(ctx context.Context, jobID uuid.UUID) (*JobLock, bool, error)
}

type lockRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewLockRepository(db *pgxpool.Pool, log *slog.Logger) LockRepository {
	if log == nil {
		log = slog.Default()
	}
	return &lockRepo{db: db, log: log}
}

// JobLock pins the session that holds the advisory lock. Release must be
// called on every acquired lock or the connection leaks.
type JobLock struct {
	conn *pgxpool.Conn
	key  int64
	log  *slog.Logger
}

// lockKey derives a stable 64-bit advisory-lock key from the job id.
func lockKey(jobID uuid.UUID) int64 {
	b := jobID[:]
	return int64(binary.BigEndian.Uint64(b[:8]))
}

func (r *lockRepo) TryLockJob(ctx context.Context, jobID uuid.UUID) (*JobLock, bool, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, false, common.WrapError(err, "acquire lock connection")
	}

	key := lockKey(jobID)
	var got bool
	if err := conn.QueryRow(ctx, `select pg_try_advisory_lock($1)`, key).Scan(&got); err != nil {
		conn.Release()
		return nil, false, common.WrapError(err, "try advisory lock")
	}
	if !got {
		conn.Release()
		r.log.Warn("generation already in flight", "job_id", jobID)
		return nil, false, nil
	}
	return &JobLock{conn: conn, key: key, log: r.log}, true, nil
}

// Release unlocks and returns the connection to the pool.
func (l *JobLock) Release(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	if _, err := l.conn.Exec(ctx, `select pg_advisory_unlock($1)`, l.key); err != nil {
		l.log.Warn("advisory unlock failed", "error", err)
	}
	l.conn.Release()
	l.conn = nil
}
