package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type ScheduleJobRepository interface {
	// Upsert records job as PENDING. A job id that is already PENDING is left alone.
	Upsert(ctx context.Context, job *models.ScheduleJob) error
	GetByJobID(ctx context.Context, jobID string) (*models.ScheduleJob, error)
	// Finish moves a PENDING job to a terminal status. It reports false when
	// the job was already terminated.
	Finish(ctx context.Context, jobID string, status models.ScheduleJobStatus) (bool, error)
}

type scheduleJobRepository struct {
	db Connection
}

func NewScheduleJobRepository(db Connection) ScheduleJobRepository {
	return &scheduleJobRepository{db: db}
}

func (r *scheduleJobRepository) Upsert(ctx context.Context, job *models.ScheduleJob) error {
	query := `
		INSERT INTO schedule_jobs (job_id, post_id, platform, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status,
			updated_at = now()
		WHERE schedule_jobs.status <> EXCLUDED.status
	`
	_, err := r.db.ExecContext(ctx, query, job.JobID, job.PostID, job.Platform, models.ScheduleJobPending)
	if err != nil {
		return fmt.Errorf("upsert schedule job %s: %w", job.JobID, err)
	}
	return nil
}

func (r *scheduleJobRepository) GetByJobID(ctx context.Context, jobID string) (*models.ScheduleJob, error) {
	var job models.ScheduleJob
	query := `SELECT job_id, post_id, platform, status, created_at, updated_at FROM schedule_jobs WHERE job_id = $1`
	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule job %s: %w", jobID, err)
	}
	return &job, nil
}

func (r *scheduleJobRepository) Finish(ctx context.Context, jobID string, status models.ScheduleJobStatus) (bool, error) {
	query := `UPDATE schedule_jobs SET status = $1, updated_at = $2 WHERE job_id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, status, time.Now(), jobID, models.ScheduleJobPending)
	if err != nil {
		return false, fmt.Errorf("finish schedule job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish schedule job %s: %w", jobID, err)
	}
	return n > 0, nil
}
