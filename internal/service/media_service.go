package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type URLSigner interface {
	PresignGetURL(ctx context.Context, key string) (string, error)
}

type MediaService interface {
	GetFileByID(ctx context.Context, id, organizationID int64) (*models.MediaFile, error)
}

type mediaService struct {
	assets repository.MediaAssetRepository
	signer URLSigner
	logger *zap.Logger
}

func NewMediaService(assets repository.MediaAssetRepository, signer URLSigner, logger *zap.Logger) MediaService {
	return &mediaService{assets: assets, signer: signer, logger: logger.Named("media_assets")}
}

// GetFileByID resolves a media asset into a downloadable file. Private assets
// are served through a presigned URL.
func (s *mediaService) GetFileByID(ctx context.Context, id, organizationID int64) (*models.MediaFile, error) {
	const op = "media.GetFileByID"

	asset, err := s.assets.GetByID(ctx, id, organizationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if asset == nil {
		return nil, apperr.NotFound(op, "media asset %d not found", id)
	}

	url := asset.FileURL
	if asset.Private {
		if s.signer == nil {
			return nil, fmt.Errorf("%s: asset %d is private and no signer is configured", op, id)
		}
		url, err = s.signer.PresignGetURL(ctx, asset.StorageKey)
		if err != nil {
			s.logger.Error("presign media asset", zap.Int64("asset_id", id), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &models.MediaFile{
		ID:       asset.ID,
		URL:      url,
		Filename: asset.FileName,
		MimeType: asset.FileType,
		Size:     asset.FileSize,
	}, nil
}
