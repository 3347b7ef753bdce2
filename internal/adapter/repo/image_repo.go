package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"coloringbook/internal/domain"
	"coloringbook/internal/infra"
	"coloringbook/internal/sqlinline"
)

// ImageVariantRepositoryPG implements domain.ImageVariantRepository.
type ImageVariantRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewImageVariantRepository(sql infra.SQLExecutor) *ImageVariantRepositoryPG {
	return &ImageVariantRepositoryPG{sql: sql}
}

func (r *ImageVariantRepositoryPG) GetVariants(ctx context.Context, imageID string) (domain.Variants, error) {
	var raw []byte
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectImageVariants, imageID).Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return domain.Variants{}, domain.ErrNotFound
		}
		return domain.Variants{}, err
	}
	var v domain.Variants
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return domain.Variants{}, fmt.Errorf("decode variants: %w", err)
		}
	}
	return v, nil
}

func (r *ImageVariantRepositoryPG) SaveVariants(ctx context.Context, imageID string, variants domain.Variants) error {
	if variants.URLs == nil {
		variants.URLs = []string{}
	}
	if variants.Prompts == nil {
		variants.Prompts = []string{}
	}
	raw, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateImageVariants, imageID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ImageVariantRepository = (*ImageVariantRepositoryPG)(nil)
