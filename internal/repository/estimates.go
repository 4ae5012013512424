package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

type EstimateRepository interface {
	// Append inserts one immutable generation record. There is no update
	// path: a job's estimate history only grows.
	Append(ctx context.Context, rec *entity.EstimateRecord) error
	Latest(ctx context.Context, jobID uuid.UUID) (*entity.EstimateRecord, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.EstimateRecord, error)
}

type estimateRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewEstimateRepository(db *pgxpool.Pool, log *slog.Logger) EstimateRepository {
	if log == nil {
		log = slog.Default()
	}
	return &estimateRepo{db: db, log: log}
}

func (r *estimateRepo) Append(ctx context.Context, rec *entity.EstimateRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
		insert into estimates (id, job_id, payload, model)
		values ($1, $2, $3, $4)
		returning created_at`,
		rec.ID, rec.JobID, rec.Payload, rec.Model).Scan(&rec.CreatedAt)
	if err != nil {
		r.log.Error("estimate append failed", "job_id", rec.JobID, "err", err)
		return common.WrapError(err, "append estimate")
	}
	r.log.Info("estimate appended", "estimate_id", rec.ID, "job_id", rec.JobID, "model", rec.Model)
	return nil
}

func (r *estimateRepo) Latest(ctx context.Context, jobID uuid.UUID) (*entity.EstimateRecord, error) {
	row := r.db.QueryRow(ctx, `
		select id, job_id, payload, model, created_at
		  from estimates
		 where job_id = $1
		 order by created_at desc, id desc
		 limit 1`, jobID)
	var rec entity.EstimateRecord
	err := row.Scan(&rec.ID, &rec.JobID, &rec.Payload, &rec.Model, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("ESTIMATE_NOT_FOUND", "no estimate for job", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "latest estimate")
	}
	return &rec, nil
}

func (r *estimateRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.EstimateRecord, error) {
	rows, err := r.db.Query(ctx, `
		select id, job_id, payload, model, created_at
		  from estimates
		 where job_id = $1
		 order by created_at desc, id desc`, jobID)
	if err != nil {
		return nil, common.WrapError(err, "list estimates")
	}
	defer rows.Close()

	var out []entity.EstimateRecord
	for rows.Next() {
		var rec entity.EstimateRecord
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Payload, &rec.Model, &rec.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan estimate")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
