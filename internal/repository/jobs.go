package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Update(ctx context.Context, job *entity.Job) error
	ListItems(ctx context.Context, jobID uuid.UUID) ([]entity.JobItem, error)
	// ReplaceItems deletes and reinserts a job's items in one transaction.
	// Last writer wins; there is no merge.
	ReplaceItems(ctx context.Context, jobID uuid.UUID, items []entity.JobItem) error

	// Status markers. MarkGenerating and MarkEstimated are conditional:
	// they never clobber a job that has already moved past the AI stage.
	MarkGenerating(ctx context.Context, id uuid.UUID) error
	MarkEstimated(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkGenerationFailed(ctx context.Context, id uuid.UUID, message string) error
}

type jobRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewJobRepository(db *pgxpool.Pool, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

const jobColumns = `id, workspace_id, customer_id, title, scope, due_date, status, error_message, estimated_at, created_at, updated_at`

func scanJob(row pgx.Row) (*entity.Job, error) {
	var j entity.Job
	err := row.Scan(&j.ID, &j.WorkspaceID, &j.CustomerID, &j.Title, &j.Scope, &j.DueDate,
		&j.Status, &j.ErrorMessage, &j.EstimatedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusDraft
	}
	_, err := r.db.Exec(ctx, `
		insert into jobs (id, workspace_id, customer_id, title, scope, due_date, status)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.WorkspaceID, job.CustomerID, job.Title, job.Scope, job.DueDate, job.Status)
	if err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "err", err)
		return common.WrapError(err, "insert job")
	}
	r.log.Info("job created", "job_id", job.ID, "workspace_id", job.WorkspaceID)
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.db.QueryRow(ctx, `select `+jobColumns+` from jobs where id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("JOB_NOT_FOUND", "job not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "get job")
	}
	return j, nil
}

func (r *jobRepo) Update(ctx context.Context, job *entity.Job) error {
	tag, err := r.db.Exec(ctx, `
		update jobs
		   set title = $2, scope = $3, due_date = $4, customer_id = $5, updated_at = now()
		 where id = $1`,
		job.ID, job.Title, job.Scope, job.DueDate, job.CustomerID)
	if err != nil {
		return common.WrapError(err, "update job")
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("JOB_NOT_FOUND", "job not found", common.ErrNotFound)
	}
	return nil
}

func (r *jobRepo) ListItems(ctx context.Context, jobID uuid.UUID) ([]entity.JobItem, error) {
	rows, err := r.db.Query(ctx, `
		select id, job_id, position, kind, description, unit, unit_price, quantity
		  from job_items
		 where job_id = $1
		 order by position asc`, jobID)
	if err != nil {
		return nil, common.WrapError(err, "list job items")
	}
	defer rows.Close()

	var items []entity.JobItem
	for rows.Next() {
		var it entity.JobItem
		if err := rows.Scan(&it.ID, &it.JobID, &it.Position, &it.Kind, &it.Description,
			&it.Unit, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, common.WrapError(err, "scan job item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *jobRepo) ReplaceItems(ctx context.Context, jobID uuid.UUID, items []entity.JobItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.WrapError(err, "begin replace items")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from job_items where job_id = $1`, jobID); err != nil {
		return common.WrapError(err, "delete job items")
	}
	for i, it := range items {
		id := it.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := tx.Exec(ctx, `
			insert into job_items (id, job_id, position, kind, description, unit, unit_price, quantity)
			values ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, jobID, i, it.Kind, it.Description, it.Unit, it.UnitPrice, it.Quantity); err != nil {
			return common.WrapError(err, "insert job item")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return common.WrapError(err, "commit replace items")
	}
	r.log.Info("job items replaced", "job_id", jobID, "count", len(items))
	return nil
}

func (r *jobRepo) MarkGenerating(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		update jobs
		   set status = $2, error_message = null, updated_at = now()
		 where id = $1
		   and status not in ($3, $4)`,
		id, constants.JobStatusAIPending, constants.JobStatusPDFPending, constants.JobStatusComplete)
	return common.WrapError(err, "mark generating")
}

func (r *jobRepo) MarkEstimated(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		update jobs
		   set status = $2, error_message = null, estimated_at = $3, updated_at = now()
		 where id = $1
		   and status not in ($4, $5)`,
		id, constants.JobStatusAIReady, at, constants.JobStatusPDFPending, constants.JobStatusComplete)
	return common.WrapError(err, "mark estimated")
}

func (r *jobRepo) MarkGenerationFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(ctx, `
		update jobs
		   set status = $2, error_message = $3, updated_at = now()
		 where id = $1`,
		id, constants.JobStatusAIError, message)
	return common.WrapError(err, "mark generation failed")
}
