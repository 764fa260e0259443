package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
	"github.com/mit45/AutoSocial-Ai/pkg/utils"
)

type SocialAccountService interface {
	Create(ctx context.Context, ac *transfer.AccountCreation) (*models.SocialAccount, error)
	List(ctx context.Context) ([]*models.SocialAccount, error)
	Get(ctx context.Context, id int64) (*models.SocialAccount, error)
	First(ctx context.Context) (*models.SocialAccount, error)
	AccessToken(acc *models.SocialAccount) (string, error)
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type socialAccountService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
	ig  InstagramService
}

func NewSocialAccountService(cfg config.Config, sa repository.SocialAccountRepository, ig InstagramService) SocialAccountService {
	return &socialAccountService{
		cfg: cfg,
		sa:  sa,
		ig:  ig,
	}
}

func (s *socialAccountService) Create(ctx context.Context, ac *transfer.AccountCreation) (*models.SocialAccount, error) {
	if ac == nil || strings.TrimSpace(ac.IGUserID) == "" {
		return nil, invalidf("ig_user_id is required")
	}
	if strings.TrimSpace(ac.AccessToken) == "" {
		return nil, invalidf("access_token is required")
	}

	token, err := s.seal(ac.AccessToken)
	if err != nil {
		return nil, err
	}

	acc := &models.SocialAccount{
		IGUserID:    strings.TrimSpace(ac.IGUserID),
		Username:    ac.Username,
		AccessToken: token,
		Niche:       ac.Niche,
	}
	if ac.ExpiresInHours > 0 {
		exp := time.Now().UTC().Add(time.Duration(ac.ExpiresInHours) * time.Hour)
		acc.TokenExpiresAt = &exp
	}

	id, err := s.sa.Create(ctx, nil, acc)
	if err != nil {
		return nil, err
	}
	acc.ID = id
	return acc, nil
}

func (s *socialAccountService) List(ctx context.Context) ([]*models.SocialAccount, error) {
	return s.sa.List(ctx)
}

func (s *socialAccountService) Get(ctx context.Context, id int64) (*models.SocialAccount, error) {
	acc, err := s.sa.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return acc, nil
}

func (s *socialAccountService) First(ctx context.Context) (*models.SocialAccount, error) {
	return s.sa.First(ctx)
}

// AccessToken returns the plaintext token. Without SECRET_KEY tokens are stored as given.
func (s *socialAccountService) AccessToken(acc *models.SocialAccount) (string, error) {
	if s.cfg.SecretKey == "" {
		return acc.AccessToken, nil
	}
	token, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token for account %d: %w", acc.ID, err)
	}
	return token, nil
}

func (s *socialAccountService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	current, err := s.AccessToken(acc)
	if err != nil {
		return err
	}

	refreshed, err := s.ig.RefreshToken(ctx, current)
	if err != nil {
		return err
	}

	sealed, err := s.seal(refreshed.AccessToken)
	if err != nil {
		return err
	}

	expiresAt := refreshed.ExpiresAt.UTC()
	if err := s.sa.SetToken(ctx, acc.ID, acc.AccessToken, sealed, &expiresAt); err != nil {
		return err
	}

	slog.Info("instagram token refreshed", "account_id", acc.ID, "expires_at", expiresAt)
	return nil
}

func (s *socialAccountService) seal(token string) (string, error) {
	if s.cfg.SecretKey == "" {
		return token, nil
	}
	return utils.Encrypt([]byte(token), []byte(s.cfg.SecretKey))
}
