package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

type PhotoRepository interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.JobPhoto, error)
	Add(ctx context.Context, photo *entity.JobPhoto) error
}

type photoRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewPhotoRepository(db *pgxpool.Pool, log *slog.Logger) PhotoRepository {
	if log == nil {
		log = slog.Default()
	}
	return &photoRepo{db: db, log: log}
}

func (r *photoRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.JobPhoto, error) {
	rows, err := r.db.Query(ctx, `
		select id, job_id, object_key, content_type, created_at
		  from job_photos
		 where job_id = $1
		 order by created_at asc`, jobID)
	if err != nil {
		return nil, common.WrapError(err, "list job photos")
	}
	defer rows.Close()

	var out []entity.JobPhoto
	for rows.Next() {
		var p entity.JobPhoto
		if err := rows.Scan(&p.ID, &p.JobID, &p.ObjectKey, &p.ContentType, &p.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan job photo")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *photoRepo) Add(ctx context.Context, photo *entity.JobPhoto) error {
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		insert into job_photos (id, job_id, object_key, content_type)
		values ($1, $2, $3, $4)`,
		photo.ID, photo.JobID, photo.ObjectKey, photo.ContentType)
	if err != nil {
		return common.WrapError(err, "add job photo")
	}
	r.log.Info("job photo added", "photo_id", photo.ID, "job_id", photo.JobID)
	return nil
}
