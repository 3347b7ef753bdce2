package domain

import (
	"context"
	"time"
)

// RemixJobRepository persists remix jobs. Slot writes touch a single index so
// concurrent slot updates never clobber each other.
type RemixJobRepository interface {
	Create(ctx context.Context, job *RemixJob) error
	Get(ctx context.Context, id string) (*RemixJob, error)
	// Claim moves a queued, failed or stale job into processing and stores
	// slots, provided the row was not written since observed (its updated_at
	// as last read). It returns ErrAlreadyClaimed when another worker won the
	// race or the row changed in between.
	Claim(ctx context.Context, id string, slots []RemixSlot, observed, staleBefore time.Time) (*RemixJob, error)
	UpdateSlot(ctx context.Context, id string, index int, slot RemixSlot) error
	Finish(ctx context.Context, id string, status JobStatus, errorMessage *string, completedAt time.Time) error
}

// ImageVariantRepository reads and writes the remix variants of a source image.
type ImageVariantRepository interface {
	GetVariants(ctx context.Context, imageID string) (Variants, error)
	SaveVariants(ctx context.Context, imageID string, variants Variants) error
}

// PhotobookJobRepository persists photobook jobs.
type PhotobookJobRepository interface {
	Create(ctx context.Context, job *PhotobookJob) error
	Get(ctx context.Context, id string) (*PhotobookJob, error)
	// ClaimNext claims the oldest pending job or returns ErrNoJobAvailable.
	ClaimNext(ctx context.Context, staleBefore time.Time) (*PhotobookJob, error)
	// Claim claims a specific job or returns ErrAlreadyClaimed.
	Claim(ctx context.Context, id string, staleBefore time.Time) (*PhotobookJob, error)
	UpdateProgress(ctx context.Context, id string, processed int) error
	Complete(ctx context.Context, id string, processed int, pdfPath, pdfURL string) error
	Fail(ctx context.Context, id string, processed int, message string) error
}

// TokenRepository stores provider API tokens.
type TokenRepository interface {
	Token(ctx context.Context, provider string) (string, error)
	SetToken(ctx context.Context, provider, token string) error
}
