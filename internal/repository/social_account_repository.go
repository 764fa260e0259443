package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/models"
)

type SocialAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	First(ctx context.Context) (*models.SocialAccount, error)
	List(ctx context.Context) ([]*models.SocialAccount, error)
	ListExpiringBefore(ctx context.Context, before time.Time) ([]*models.SocialAccount, error)
	SetToken(ctx context.Context, id int64, oldAccessToken string, accessToken string, expiresAt *time.Time) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const accountColumns = `id, ig_user_id, username, access_token, token_expires_at, niche, created_at, updated_at`

func scanAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.IGUserID, &sa.Username, &sa.AccessToken, &sa.TokenExpiresAt,
		&sa.Niche, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	var err error
	var id int64

	insertQuery := `
		INSERT INTO social_accounts (ig_user_id, username, access_token, token_expires_at, niche)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	args := []any{sa.IGUserID, sa.Username, sa.AccessToken, sa.TokenExpiresAt, sa.Niche}

	if tx != nil {
		err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// First returns the oldest account, the fallback publisher identity.
func (r *socialAccountRepository) First(ctx context.Context) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts ORDER BY id LIMIT 1`
	return r.getOne(ctx, query)
}

func (r *socialAccountRepository) getOne(ctx context.Context, query string, args ...any) (*models.SocialAccount, error) {
	sa, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) List(ctx context.Context) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts ORDER BY id`
	return r.list(ctx, query)
}

func (r *socialAccountRepository) ListExpiringBefore(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts
		WHERE token_expires_at IS NOT NULL AND token_expires_at < $1
		ORDER BY token_expires_at`
	return r.list(ctx, query, before)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

// SetToken swaps the stored credential only if it still equals oldAccessToken.
func (r *socialAccountRepository) SetToken(ctx context.Context, id int64, oldAccessToken string, accessToken string, expiresAt *time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE social_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			token_expires_at = COALESCE($4, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND access_token = $2
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, id, oldAccessToken, accessToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; token changed concurrently", "account_id", id)
		return errors.New("no rows affected; token changed concurrently")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
