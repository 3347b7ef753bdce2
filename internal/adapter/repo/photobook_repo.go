package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"coloringbook/internal/domain"
	"coloringbook/internal/infra"
	"coloringbook/internal/sqlinline"
)

// PhotobookJobRepositoryPG implements domain.PhotobookJobRepository.
type PhotobookJobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPhotobookJobRepository creates a photobook job repository backed by PostgreSQL.
func NewPhotobookJobRepository(sql infra.SQLExecutor) *PhotobookJobRepositoryPG {
	return &PhotobookJobRepositoryPG{sql: sql}
}

func (r *PhotobookJobRepositoryPG) Create(ctx context.Context, job *domain.PhotobookJob) error {
	images, err := json.Marshal(job.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertPhotobookJob,
		job.ID,
		job.UserID,
		job.Title,
		job.Description,
		job.Locale,
		images,
		job.TotalCount,
		job.CreatedAt,
	)
	return err
}

func (r *PhotobookJobRepositoryPG) Get(ctx context.Context, id string) (*domain.PhotobookJob, error) {
	if !isJobID(id) {
		return nil, domain.ErrNotFound
	}
	job, err := scanPhotobookJob(r.sql.QueryRow(ctx, sqlinline.QSelectPhotobookJob, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *PhotobookJobRepositoryPG) ClaimNext(ctx context.Context, staleBefore time.Time) (*domain.PhotobookJob, error) {
	job, err := scanPhotobookJob(r.sql.QueryRow(ctx, sqlinline.QClaimNextPhotobookJob, staleBefore))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNoJobAvailable
		}
		return nil, err
	}
	return job, nil
}

// Claim treats an id that cannot exist as not claimable.
func (r *PhotobookJobRepositoryPG) Claim(ctx context.Context, id string, staleBefore time.Time) (*domain.PhotobookJob, error) {
	if !isJobID(id) {
		return nil, domain.ErrAlreadyClaimed
	}
	job, err := scanPhotobookJob(r.sql.QueryRow(ctx, sqlinline.QClaimPhotobookJob, id, staleBefore))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, err
	}
	return job, nil
}

func (r *PhotobookJobRepositoryPG) UpdateProgress(ctx context.Context, id string, processed int) error {
	return r.exec(ctx, sqlinline.QUpdatePhotobookProgress, id, processed)
}

func (r *PhotobookJobRepositoryPG) Complete(ctx context.Context, id string, processed int, pdfPath, pdfURL string) error {
	return r.exec(ctx, sqlinline.QCompletePhotobookJob, id, processed, pdfPath, pdfURL)
}

func (r *PhotobookJobRepositoryPG) Fail(ctx context.Context, id string, processed int, message string) error {
	return r.exec(ctx, sqlinline.QFailPhotobookJob, id, processed, message)
}

func (r *PhotobookJobRepositoryPG) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPhotobookJob(row pgx.Row) (*domain.PhotobookJob, error) {
	var (
		job    domain.PhotobookJob
		status string
		images []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&job.Title,
		&job.Description,
		&job.Locale,
		&images,
		&job.ProcessedCount,
		&job.TotalCount,
		&job.PDFPath,
		&job.PDFURL,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &job.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	return &job, nil
}

var _ domain.PhotobookJobRepository = (*PhotobookJobRepositoryPG)(nil)
