package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const AccountStatusDisconnected = "disconnected"

// AccountService hands out decrypted platform credentials. It never refreshes
// tokens; an expired token is reported as an auth error.
type AccountService interface {
	GetValidAccessToken(ctx context.Context, accountID int64) (platform.Account, error)
}

type accountService struct {
	accounts  repository.SocialAccountRepository
	secretKey []byte
	logger    *zap.Logger
}

func NewAccountService(accounts repository.SocialAccountRepository, secretKey string, logger *zap.Logger) AccountService {
	return &accountService{
		accounts:  accounts,
		secretKey: []byte(secretKey),
		logger:    logger.Named("accounts"),
	}
}

func (s *accountService) GetValidAccessToken(ctx context.Context, accountID int64) (platform.Account, error) {
	const op = "accounts.GetValidAccessToken"

	sa, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return platform.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	if sa == nil {
		return platform.Account{}, apperr.NotFound(op, "social account %d not found", accountID)
	}
	if sa.AccountStatus == AccountStatusDisconnected {
		return platform.Account{}, apperr.Auth(op, fmt.Errorf("social account %d is disconnected", accountID))
	}

	accessToken, err := utils.Decrypt(sa.AccessToken, s.secretKey)
	if err != nil {
		s.logger.Error("decrypt access token", zap.Int64("account_id", accountID), zap.Error(err))
		return platform.Account{}, apperr.Auth(op, errors.New("stored access token is unreadable"))
	}

	token := &oauth2.Token{AccessToken: accessToken, Expiry: sa.TokenExpiresAt}
	if !token.Valid() {
		return platform.Account{}, apperr.Auth(op, fmt.Errorf("access token for account %d expired at %s", accountID, sa.TokenExpiresAt.Format("2006-01-02T15:04:05Z07:00")))
	}

	return platform.Account{
		ID:          sa.ID,
		ExternalID:  sa.AccountID,
		AccessToken: token.AccessToken,
	}, nil
}
