package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/service"
)

// Long-lived Instagram tokens last 60 days; refresh them a week early.
const tokenRefreshHorizon = 7 * 24 * time.Hour

type TokenRefreshJob struct {
	sr       repository.SocialAccountRepository
	accounts service.SocialAccountService
	now      func() time.Time
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	accounts service.SocialAccountService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:       sr,
		accounts: accounts,
		now:      time.Now,
	}
}

// RefreshTokens refreshes every token expiring within the horizon and
// returns how many were refreshed.
func (c *TokenRefreshJob) RefreshTokens(ctx context.Context) int {
	accounts, err := c.sr.ListExpiringBefore(ctx, c.now().Add(tokenRefreshHorizon))
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var wg sync.WaitGroup
	var refreshed atomic.Int64

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.accounts.RefreshToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens for Instagram", "account_id", acc.ID, "error", err)
				return
			}
			refreshed.Add(1)
		}(acc)
	}
	wg.Wait()

	return int(refreshed.Load())
}

func (c *TokenRefreshJob) Run(ctx context.Context) {
	if n := c.RefreshTokens(ctx); n > 0 {
		slog.Info("instagram tokens refreshed", "count", n)
	}
}
