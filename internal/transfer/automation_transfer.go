package transfer

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/mit45/AutoSocial-Ai/internal/models"
)

type AutomationUpdate struct {
	Enabled     bool              `json:"enabled"`
	Frequency   string            `json:"frequency"`
	DailyCount  int               `json:"daily_count"`
	WeeklyCount int               `json:"weekly_count"`
	StartHour   int               `json:"start_hour"`
	EndHour     int               `json:"end_hour"`
	StartTime   string            `json:"start_time"`
	EndTime     string            `json:"end_time"`
	DailyTimes  []models.TimeSlot `json:"daily_times"`
	WeeklyTimes []models.TimeSlot `json:"weekly_times"`
	OnlyDraft   bool              `json:"only_draft"`
}

type AccountCreation struct {
	IGUserID       string `json:"ig_user_id"`
	Username       string `json:"username"`
	AccessToken    string `json:"access_token"`
	Niche          string `json:"niche"`
	ExpiresInHours int    `json:"expires_in_hours"`
}

// CustomClaims identifies an operator on the HTTP API.
type CustomClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}
