package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/timeutil"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// TimeSlot is one scheduled generation time. Weekday is only used by weekly policies.
type TimeSlot struct {
	Weekday     string `json:"weekday,omitempty"`
	Time        string `json:"time"`
	AutoApprove bool   `json:"auto_approve"`
	AutoPublish bool   `json:"auto_publish"`
}

func (s TimeSlot) Validate(weekly bool) error {
	if _, _, err := timeutil.ParseHHMM(s.Time); err != nil {
		return err
	}
	if weekly {
		if _, err := timeutil.ParseWeekday(s.Weekday); err != nil {
			return err
		}
	}
	return nil
}

// TimeSlots is stored as a JSONB array and validated on both read and write.
type TimeSlots []TimeSlot

func (ts TimeSlots) Value() (driver.Value, error) {
	if ts == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]TimeSlot(ts))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (ts *TimeSlots) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*ts = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("time slots: unsupported type %T", src)
	}
	var out []TimeSlot
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("time slots: %w", err)
	}
	for _, s := range out {
		if _, _, err := timeutil.ParseHHMM(s.Time); err != nil {
			return fmt.Errorf("time slots: %w", err)
		}
	}
	*ts = out
	return nil
}

type AutomationSetting struct {
	ID          int64      `db:"id" json:"id"`
	AccountID   int64      `db:"account_id" json:"account_id"`
	Enabled     bool       `db:"enabled" json:"enabled"`
	Frequency   Frequency  `db:"frequency" json:"frequency"`
	DailyCount  int        `db:"daily_count" json:"daily_count"`
	WeeklyCount int        `db:"weekly_count" json:"weekly_count"`
	StartHour   int        `db:"start_hour" json:"start_hour"`
	EndHour     int        `db:"end_hour" json:"end_hour"`
	StartTime   string     `db:"start_time" json:"start_time,omitempty"`
	EndTime     string     `db:"end_time" json:"end_time,omitempty"`
	DailyTimes  TimeSlots  `db:"daily_times" json:"daily_times"`
	WeeklyTimes TimeSlots  `db:"weekly_times" json:"weekly_times"`
	OnlyDraft   bool       `db:"only_draft" json:"only_draft"`
	LastRunAt   *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

var ErrInvalidSetting = errors.New("invalid automation setting")

func (s *AutomationSetting) Validate() error {
	if s.Frequency != FrequencyDaily && s.Frequency != FrequencyWeekly {
		return fmt.Errorf("%w: frequency must be daily or weekly", ErrInvalidSetting)
	}
	if s.DailyCount < 0 || s.WeeklyCount < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidSetting)
	}
	if s.StartHour < 0 || s.StartHour > 24 || s.EndHour < 0 || s.EndHour > 24 {
		return fmt.Errorf("%w: hours must be between 0 and 24", ErrInvalidSetting)
	}
	if s.StartHour > s.EndHour {
		return fmt.Errorf("%w: start_hour is after end_hour", ErrInvalidSetting)
	}
	for _, v := range []string{s.StartTime, s.EndTime} {
		if v == "" {
			continue
		}
		if _, _, err := timeutil.ParseHHMM(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
		}
	}
	for _, slot := range s.DailyTimes {
		if err := slot.Validate(false); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
		}
	}
	for _, slot := range s.WeeklyTimes {
		if err := slot.Validate(true); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
		}
	}
	return nil
}

// Slots returns the time slot list that applies to the policy frequency.
func (s *AutomationSetting) Slots() []TimeSlot {
	if s.Frequency == FrequencyWeekly {
		return s.WeeklyTimes
	}
	return s.DailyTimes
}

// TargetCount is the draft target for count-based policies.
func (s *AutomationSetting) TargetCount() int {
	n := s.DailyCount
	if s.Frequency == FrequencyWeekly {
		n = s.WeeklyCount
	}
	if n <= 0 {
		return 1
	}
	return n
}

// AutomationRun is a claim row: one per (setting, local date, slot).
type AutomationRun struct {
	ID        int64     `db:"id" json:"id"`
	SettingID int64     `db:"setting_id" json:"setting_id"`
	RunDate   string    `db:"run_date" json:"run_date"`
	Slot      string    `db:"slot" json:"slot"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
