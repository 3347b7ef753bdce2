package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"coloringbook/internal/domain"
	"coloringbook/internal/infra"
	"coloringbook/internal/sqlinline"
)

// RemixJobRepositoryPG implements domain.RemixJobRepository.
type RemixJobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewRemixJobRepository creates a remix job repository backed by PostgreSQL.
func NewRemixJobRepository(sql infra.SQLExecutor) *RemixJobRepositoryPG {
	return &RemixJobRepositoryPG{sql: sql}
}

// Create inserts a new queued remix job.
func (r *RemixJobRepositoryPG) Create(ctx context.Context, job *domain.RemixJob) error {
	prompts, err := json.Marshal(job.Prompts)
	if err != nil {
		return fmt.Errorf("marshal prompts: %w", err)
	}
	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertRemixJob,
		job.ID,
		job.UserID,
		job.ImageID,
		job.ImageURL,
		prompts,
		job.Provider,
		results,
		job.CreatedAt,
	)
	return err
}

// Get fetches a remix job by id.
func (r *RemixJobRepositoryPG) Get(ctx context.Context, id string) (*domain.RemixJob, error) {
	if !isJobID(id) {
		return nil, domain.ErrNotFound
	}
	job, err := scanRemixJob(r.sql.QueryRow(ctx, sqlinline.QSelectRemixJob, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Claim moves the job into processing with the given slots when its
// updated_at still matches observed.
func (r *RemixJobRepositoryPG) Claim(ctx context.Context, id string, slots []domain.RemixSlot, observed, staleBefore time.Time) (*domain.RemixJob, error) {
	if !isJobID(id) {
		return nil, domain.ErrNotFound
	}
	results, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	job, err := scanRemixJob(r.sql.QueryRow(ctx, sqlinline.QClaimRemixJob, id, results, staleBefore, observed))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, err
	}
	return job, nil
}

// UpdateSlot overwrites the slot at index without touching its siblings.
func (r *RemixJobRepositoryPG) UpdateSlot(ctx context.Context, id string, index int, slot domain.RemixSlot) error {
	payload, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("marshal slot: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateRemixSlot, id, strconv.Itoa(index), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Finish records the terminal status of a job.
func (r *RemixJobRepositoryPG) Finish(ctx context.Context, id string, status domain.JobStatus, errorMessage *string, completedAt time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFinishRemixJob, id, string(status), errorMessage, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRemixJob(row pgx.Row) (*domain.RemixJob, error) {
	var (
		job     domain.RemixJob
		status  string
		prompts []byte
		results []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ImageID,
		&job.ImageURL,
		&prompts,
		&job.Provider,
		&status,
		&results,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if len(prompts) > 0 {
		if err := json.Unmarshal(prompts, &job.Prompts); err != nil {
			return nil, fmt.Errorf("decode prompts: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	return &job, nil
}

var _ domain.RemixJobRepository = (*RemixJobRepositoryPG)(nil)
