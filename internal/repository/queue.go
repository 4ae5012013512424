package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

type QueueRepository interface {
	// Enqueue creates one pending entry per requested generation. If a
	// pending entry already exists for the job it is returned instead of
	// duplicated.
	Enqueue(ctx context.Context, jobID, workspaceID uuid.UUID, maxAttempts int) (*entity.QueueEntry, error)
	// ClaimNext atomically leases the oldest pending entry: status flips
	// to running, attempts increments, locked_at is stamped. Safe under
	// concurrent runners; returns nil when nothing is eligible.
	ClaimNext(ctx context.Context) (*entity.QueueEntry, error)
	// ClaimByJob leases the pending entry for one specific job (direct
	// mode). Returns nil when the job has no pending entry.
	ClaimByJob(ctx context.Context, jobID uuid.UUID) (*entity.QueueEntry, error)
	// Complete removes a finished entry; completed work items are not
	// retained.
	Complete(ctx context.Context, id uuid.UUID) error
	// Release returns a running entry to pending for another attempt.
	Release(ctx context.Context, id uuid.UUID, message string) error
	// Fail parks a running entry permanently.
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

type queueRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewQueueRepository(db *pgxpool.Pool, log *slog.Logger) QueueRepository {
	if log == nil {
		log = slog.Default()
	}
	return &queueRepo{db: db, log: log}
}

const queueColumns = `id, job_id, workspace_id, status, attempts, max_attempts, error_message, locked_at, created_at`

func scanQueueEntry(row pgx.Row) (*entity.QueueEntry, error) {
	var e entity.QueueEntry
	err := row.Scan(&e.ID, &e.JobID, &e.WorkspaceID, &e.Status, &e.Attempts,
		&e.MaxAttempts, &e.ErrorMessage, &e.LockedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *queueRepo) Enqueue(ctx context.Context, jobID, workspaceID uuid.UUID, maxAttempts int) (*entity.QueueEntry, error) {
	// The partial unique index on (job_id) where status = 'pending' makes
	// the dedup atomic: concurrent enqueues race on the insert, one wins,
	// the rest fall through to the select and reuse the surviving row.
	row := r.db.QueryRow(ctx, `
		insert into estimate_queue (id, job_id, workspace_id, status, attempts, max_attempts)
		values ($1, $2, $3, $4, 0, $5)
		on conflict (job_id) where status = 'pending' do nothing
		returning `+queueColumns,
		uuid.New(), jobID, workspaceID, constants.QueueStatusPending, maxAttempts)
	entry, err := scanQueueEntry(row)
	if err == nil {
		r.log.Info("generation enqueued", "queue_id", entry.ID, "job_id", jobID)
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(err, "enqueue generation")
	}

	row = r.db.QueryRow(ctx, `
		select `+queueColumns+`
		  from estimate_queue
		 where job_id = $1 and status = $2
		 limit 1`, jobID, constants.QueueStatusPending)
	existing, err := scanQueueEntry(row)
	if err != nil {
		return nil, common.WrapError(err, "load pending entry")
	}
	r.log.Info("queue entry reused", "queue_id", existing.ID, "job_id", jobID)
	return existing, nil
}

// The claim subquery uses FOR UPDATE SKIP LOCKED so two runners can never
// select the same row; the status guard in the outer UPDATE keeps the flip
// conditional even on retry.
const claimNextSQL = `
	update estimate_queue
	   set status = 'running', attempts = attempts + 1, locked_at = now()
	 where id = (
	       select id from estimate_queue
	        where status = 'pending'
	        order by created_at asc
	        for update skip locked
	        limit 1)
	   and status = 'pending'
	returning ` + queueColumns

func (r *queueRepo) ClaimNext(ctx context.Context) (*entity.QueueEntry, error) {
	entry, err := scanQueueEntry(r.db.QueryRow(ctx, claimNextSQL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "claim next entry")
	}
	r.log.Info("queue entry claimed", "queue_id", entry.ID, "job_id", entry.JobID, "attempt", entry.Attempts)
	return entry, nil
}

const claimByJobSQL = `
	update estimate_queue
	   set status = 'running', attempts = attempts + 1, locked_at = now()
	 where id = (
	       select id from estimate_queue
	        where job_id = $1 and status = 'pending'
	        order by created_at asc
	        for update skip locked
	        limit 1)
	   and status = 'pending'
	returning ` + queueColumns

func (r *queueRepo) ClaimByJob(ctx context.Context, jobID uuid.UUID) (*entity.QueueEntry, error) {
	entry, err := scanQueueEntry(r.db.QueryRow(ctx, claimByJobSQL, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "claim entry by job")
	}
	r.log.Info("queue entry claimed", "queue_id", entry.ID, "job_id", entry.JobID, "attempt", entry.Attempts)
	return entry, nil
}

func (r *queueRepo) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `delete from estimate_queue where id = $1`, id)
	if err != nil {
		return common.WrapError(err, "complete queue entry")
	}
	r.log.Info("queue entry completed", "queue_id", id)
	return nil
}

func (r *queueRepo) Release(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(ctx, `
		update estimate_queue
		   set status = $2, locked_at = null, error_message = $3
		 where id = $1 and status = $4`,
		id, constants.QueueStatusPending, message, constants.QueueStatusRunning)
	if err != nil {
		return common.WrapError(err, "release queue entry")
	}
	r.log.Warn("queue entry released for retry", "queue_id", id, "error", message)
	return nil
}

func (r *queueRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(ctx, `
		update estimate_queue
		   set status = $2, locked_at = null, error_message = $3
		 where id = $1 and status = $4`,
		id, constants.QueueStatusFailed, message, constants.QueueStatusRunning)
	if err != nil {
		return common.WrapError(err, "fail queue entry")
	}
	r.log.Error("queue entry failed permanently", "queue_id", id, "error", message)
	return nil
}
