package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/telemetry"
	"github.com/mit45/AutoSocial-Ai/internal/timeutil"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

type AutomationService interface {
	Get(ctx context.Context, accountID int64) (*models.AutomationSetting, error)
	Set(ctx context.Context, accountID int64, u *transfer.AutomationUpdate) (*models.AutomationSetting, error)
	// EvaluateAll runs one scheduler tick over every enabled policy and
	// returns the number of drafts generated.
	EvaluateAll(ctx context.Context) (int, error)
}

// DueSlot is a resolved schedule slot that may fire on this tick.
type DueSlot struct {
	Label       string
	RunDate     string
	At          time.Time
	AutoApprove bool
	AutoPublish bool
}

type automationService struct {
	cfg       config.Config
	ar        repository.AutomationRepository
	runs      repository.AutomationRunRepository
	pr        repository.PostRepository
	accounts  SocialAccountService
	generator GeneratorService
	clock     timeutil.Clock
	now       func() time.Time
	metrics   *telemetry.Metrics
}

type AutomationOption func(*automationService)

func WithAutomationClock(now func() time.Time) AutomationOption {
	return func(s *automationService) { s.now = now }
}

func WithAutomationMetrics(m *telemetry.Metrics) AutomationOption {
	return func(s *automationService) { s.metrics = m }
}

func NewAutomationService(
	cfg config.Config,
	ar repository.AutomationRepository,
	runs repository.AutomationRunRepository,
	pr repository.PostRepository,
	accounts SocialAccountService,
	generator GeneratorService,
	opts ...AutomationOption) AutomationService {
	s := &automationService{
		cfg:       cfg,
		ar:        ar,
		runs:      runs,
		pr:        pr,
		accounts:  accounts,
		generator: generator,
		clock:     timeutil.NewClock(cfg.Location()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *automationService) Get(ctx context.Context, accountID int64) (*models.AutomationSetting, error) {
	st, err := s.ar.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("automation for account %d: %w", accountID, ErrNotFound)
	}
	return st, nil
}

func (s *automationService) Set(ctx context.Context, accountID int64, u *transfer.AutomationUpdate) (*models.AutomationSetting, error) {
	if u == nil {
		return nil, invalidf("automation settings are required")
	}
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}

	freq := models.Frequency(strings.ToLower(strings.TrimSpace(u.Frequency)))
	if freq == "" {
		freq = models.FrequencyDaily
	}
	endHour := u.EndHour
	if u.StartHour == 0 && endHour == 0 {
		endHour = 24
	}

	st := &models.AutomationSetting{
		AccountID:   accountID,
		Enabled:     u.Enabled,
		Frequency:   freq,
		DailyCount:  u.DailyCount,
		WeeklyCount: u.WeeklyCount,
		StartHour:   u.StartHour,
		EndHour:     endHour,
		StartTime:   strings.TrimSpace(u.StartTime),
		EndTime:     strings.TrimSpace(u.EndTime),
		DailyTimes:  u.DailyTimes,
		WeeklyTimes: u.WeeklyTimes,
		OnlyDraft:   u.OnlyDraft,
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}

	if _, err := s.ar.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("error saving automation settings: %w", err)
	}
	slog.Info("automation settings saved", "account_id", accountID, "enabled", st.Enabled, "frequency", st.Frequency)
	return s.Get(ctx, accountID)
}

func (s *automationService) EvaluateAll(ctx context.Context) (int, error) {
	now := s.now().UTC()

	settings, err := s.ar.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	generated := 0
	var errs []error
	for _, st := range settings {
		if err := ctx.Err(); err != nil {
			return generated, err
		}
		fired, err := s.evaluate(ctx, st, now)
		if err != nil {
			slog.Error("automation evaluation failed", "policy_id", st.ID, "account_id", st.AccountID, "error", err)
			errs = append(errs, fmt.Errorf("policy %d: %w", st.ID, err))
			continue
		}
		if fired {
			generated++
		}
	}
	return generated, errors.Join(errs...)
}

func (s *automationService) evaluate(ctx context.Context, st *models.AutomationSetting, now time.Time) (bool, error) {
	slot, err := s.dueSlot(ctx, st, now)
	if err != nil || slot == nil {
		return false, err
	}

	if _, err := s.runs.Claim(ctx, st.ID, slot.RunDate, slot.Label); err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			s.metrics.RecordClaim(ctx, "taken")
			slog.Debug("slot already claimed", "policy_id", st.ID, "run_date", slot.RunDate, "slot", slot.Label)
			return false, nil
		}
		return false, err
	}
	s.metrics.RecordClaim(ctx, "won")

	req := &transfer.GenerateRequest{
		AccountID:   &st.AccountID,
		AutoApprove: slot.AutoApprove,
		AutoPublish: slot.AutoPublish,
	}
	if st.OnlyDraft {
		req.AutoApprove, req.AutoPublish = false, false
	}

	if s.cfg.DuplicateWindow > 0 {
		since := now.Add(-s.cfg.DuplicateWindow)
		n, err := s.pr.CountCreatedSince(ctx, &st.AccountID, since)
		if err != nil {
			return false, err
		}
		if n > 0 {
			slog.Info("recent draft exists, skipping slot", "policy_id", st.ID, "slot", slot.Label)
			return false, s.ar.SetLastRun(ctx, st.ID, now)
		}
		req.DuplicateSince = &since
	}

	post, err := s.generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			slog.Info("draft created concurrently, skipping slot", "policy_id", st.ID, "slot", slot.Label)
			return false, s.ar.SetLastRun(ctx, st.ID, now)
		}
		return false, err
	}

	if err := s.ar.SetLastRun(ctx, st.ID, now); err != nil {
		return true, err
	}
	slog.Info("automation draft generated", "policy_id", st.ID, "post_id", post.ID, "slot", slot.Label, "run_date", slot.RunDate)
	return true, nil
}

// dueSlot resolves the slot that should fire now, or nil. Explicit time
// slots take precedence; without them the count target applies.
func (s *automationService) dueSlot(ctx context.Context, st *models.AutomationSetting, now time.Time) (*DueSlot, error) {
	if slots := st.Slots(); len(slots) > 0 {
		return s.dueTimeSlot(st, slots, now)
	}
	return s.dueCountSlot(ctx, st, now)
}

func (s *automationService) dueTimeSlot(st *models.AutomationSetting, slots []models.TimeSlot, now time.Time) (*DueSlot, error) {
	weekly := st.Frequency == models.FrequencyWeekly

	var due *DueSlot
	for _, slot := range slots {
		hh, mm, err := timeutil.ParseHHMM(slot.Time)
		if err != nil {
			return nil, err
		}

		day := now
		label := fmt.Sprintf("%02d:%02d", hh, mm)
		if weekly {
			wd, err := timeutil.ParseWeekday(slot.Weekday)
			if err != nil {
				return nil, err
			}
			day = s.clock.DayInWeek(now, wd)
			label = strings.ToLower(wd.String()) + " " + label
		}

		at := s.clock.At(day, hh, mm)
		if at.After(now) {
			continue
		}
		if st.LastRunAt != nil && !st.LastRunAt.Before(at) {
			continue
		}
		if due == nil || at.After(due.At) {
			due = &DueSlot{
				Label:       label,
				RunDate:     s.clock.LocalDate(at),
				At:          at,
				AutoApprove: slot.AutoApprove || slot.AutoPublish,
				AutoPublish: slot.AutoPublish,
			}
		}
	}
	return due, nil
}

// dueCountSlot spreads a daily target evenly over the hour window, one draft
// per step. Weekly targets fire at most once per day inside the window until
// reached.
func (s *automationService) dueCountSlot(ctx context.Context, st *models.AutomationSetting, now time.Time) (*DueSlot, error) {
	start, end, err := s.window(st, now)
	if err != nil {
		return nil, err
	}
	if now.Before(start) || !now.Before(end) {
		return nil, nil
	}

	target := st.TargetCount()
	periodStart := s.clock.StartOfDay(now)
	if st.Frequency == models.FrequencyWeekly {
		periodStart = s.clock.StartOfWeek(now)
	}

	created, err := s.pr.CountCreatedSince(ctx, &st.AccountID, periodStart)
	if err != nil {
		return nil, err
	}
	if created >= target {
		return nil, nil
	}

	if st.Frequency == models.FrequencyWeekly {
		if st.LastRunAt != nil && !st.LastRunAt.Before(start) {
			return nil, nil
		}
		return &DueSlot{Label: "count", RunDate: s.clock.LocalDate(now), At: start}, nil
	}

	// The window is cut into target steps; each step is claimed on its own
	// so a skipped step does not block the ones after it.
	span := end.Sub(start)
	step := int(int64(now.Sub(start)) * int64(target) / int64(span))
	return &DueSlot{
		Label:   fmt.Sprintf("count-%d", step+1),
		RunDate: s.clock.LocalDate(periodStart),
		At:      start.Add(time.Duration(step) * span / time.Duration(target)),
	}, nil
}

// window returns today's generation window. StartTime/EndTime override the
// hour fields; an end at or before the start means end of day.
func (s *automationService) window(st *models.AutomationSetting, now time.Time) (time.Time, time.Time, error) {
	startH, startM, endH, endM := st.StartHour, 0, st.EndHour, 0
	if st.StartTime != "" {
		h, m, err := timeutil.ParseHHMM(st.StartTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		startH, startM = h, m
	}
	if st.EndTime != "" {
		h, m, err := timeutil.ParseHHMM(st.EndTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		endH, endM = h, m
	}

	start := s.clock.At(now, startH, startM)
	nextDay := s.clock.StartOfDay(s.clock.StartOfDay(now).Add(36 * time.Hour))
	if endH >= 24 {
		return start, nextDay, nil
	}
	end := s.clock.At(now, endH, endM)
	if !end.After(start) {
		end = nextDay
	}
	return start, end, nil
}
