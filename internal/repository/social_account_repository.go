package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type SocialAccountRepository interface {
	Create(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
}

type socialAccountRepository struct {
	db Connection
}

func NewSocialAccountRepository(db Connection) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func (r *socialAccountRepository) Create(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts (
			organization_id,
			platform,
			account_id,
			account_name,
			account_username,
			access_token,
			refresh_token,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.GetContext(ctx, &id, query,
		sa.OrganizationID,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.AccountUsername,
		sa.AccessToken,
		sa.RefreshToken,
		sa.TokenExpiresAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert social account: %w", err)
	}
	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `
		SELECT id, organization_id, platform, account_id, account_name, account_username,
			access_token, refresh_token, token_expires_at, account_status, created_at, updated_at
		FROM social_accounts
		WHERE id = $1
	`
	var sa models.SocialAccount
	if err := r.db.GetContext(ctx, &sa, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get social account %d: %w", id, err)
	}
	return &sa, nil
}
