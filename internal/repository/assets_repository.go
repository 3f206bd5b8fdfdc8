package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type MediaAssetRepository interface {
	Create(ctx context.Context, ma *models.MediaAsset) (int64, error)
	// GetByID only returns assets owned by organizationID.
	GetByID(ctx context.Context, id, organizationID int64) (*models.MediaAsset, error)
}

type mediaAssetRepository struct {
	db Connection
}

func NewMediaAssetRepository(db Connection) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

func (r *mediaAssetRepository) Create(ctx context.Context, ma *models.MediaAsset) (int64, error) {
	query := `
		INSERT INTO media_assets (organization_id, file_name, file_type, file_size, file_url, storage_key, private)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.db.GetContext(ctx, &id, query,
		ma.OrganizationID, ma.FileName, ma.FileType, ma.FileSize, ma.FileURL, ma.StorageKey, ma.Private)
	if err != nil {
		return 0, fmt.Errorf("insert media asset: %w", err)
	}
	return id, nil
}

func (r *mediaAssetRepository) GetByID(ctx context.Context, id, organizationID int64) (*models.MediaAsset, error) {
	query := `
		SELECT id, organization_id, file_name, file_type, file_size, file_url, storage_key, private, created_at
		FROM media_assets
		WHERE id = $1 AND organization_id = $2
	`
	var ma models.MediaAsset
	if err := r.db.GetContext(ctx, &ma, query, id, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get media asset %d: %w", id, err)
	}
	return &ma, nil
}
