package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/models"
)

type AutomationRepository interface {
	GetByAccountID(ctx context.Context, accountID int64) (*models.AutomationSetting, error)
	ListEnabled(ctx context.Context) ([]*models.AutomationSetting, error)
	Upsert(ctx context.Context, s *models.AutomationSetting) (int64, error)
	SetLastRun(ctx context.Context, id int64, at time.Time) error
}

type automationRepository struct {
	db *sql.DB
}

func NewAutomationRepository(db *sql.DB) AutomationRepository {
	return &automationRepository{db: db}
}

const settingColumns = `id, account_id, enabled, frequency, daily_count, weekly_count, start_hour, end_hour,
	start_time, end_time, daily_times, weekly_times, only_draft, last_run_at, created_at, updated_at`

func scanSetting(row rowScanner) (*models.AutomationSetting, error) {
	var s models.AutomationSetting
	err := row.Scan(&s.ID, &s.AccountID, &s.Enabled, &s.Frequency, &s.DailyCount, &s.WeeklyCount,
		&s.StartHour, &s.EndHour, &s.StartTime, &s.EndTime, &s.DailyTimes, &s.WeeklyTimes,
		&s.OnlyDraft, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *automationRepository) GetByAccountID(ctx context.Context, accountID int64) (*models.AutomationSetting, error) {
	query := `SELECT ` + settingColumns + ` FROM automation_settings WHERE account_id = $1`

	s, err := scanSetting(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return s, nil
}

func (r *automationRepository) ListEnabled(ctx context.Context) ([]*models.AutomationSetting, error) {
	query := `SELECT ` + settingColumns + ` FROM automation_settings WHERE enabled ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var settings []*models.AutomationSetting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return settings, nil
}

// Upsert writes the policy for s.AccountID. last_run_at is left untouched.
func (r *automationRepository) Upsert(ctx context.Context, s *models.AutomationSetting) (int64, error) {
	query := `
		INSERT INTO automation_settings (account_id, enabled, frequency, daily_count, weekly_count,
			start_hour, end_hour, start_time, end_time, daily_times, weekly_times, only_draft)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (account_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			frequency = EXCLUDED.frequency,
			daily_count = EXCLUDED.daily_count,
			weekly_count = EXCLUDED.weekly_count,
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			daily_times = EXCLUDED.daily_times,
			weekly_times = EXCLUDED.weekly_times,
			only_draft = EXCLUDED.only_draft,
			updated_at = NOW()
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, s.AccountID, s.Enabled, s.Frequency, s.DailyCount, s.WeeklyCount,
		s.StartHour, s.EndHour, s.StartTime, s.EndTime, s.DailyTimes, s.WeeklyTimes, s.OnlyDraft).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *automationRepository) SetLastRun(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE automation_settings SET last_run_at = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at.UTC(), id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
