package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

type AutomationRunRepository interface {
	Claim(ctx context.Context, settingID int64, runDate, slot string) (int64, error)
}

type automationRunRepository struct {
	db *sql.DB
}

func NewAutomationRunRepository(db *sql.DB) AutomationRunRepository {
	return &automationRunRepository{db: db}
}

// Claim inserts the ledger row for (setting, local date, slot). A unique
// violation returns ErrAlreadyClaimed.
func (r *automationRunRepository) Claim(ctx context.Context, settingID int64, runDate, slot string) (int64, error) {
	query := `
		INSERT INTO automation_runs (setting_id, run_date, slot)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, settingID, runDate, slot).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyClaimed
		}
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}
