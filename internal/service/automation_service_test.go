package service

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type automationFixture struct {
	now       time.Time
	posts     *fakePostRepo
	accounts  *fakeAccountRepo
	settings  *fakeAutomationRepo
	runs      *fakeRunRepo
	scheduler *fakeScheduler
	svc       AutomationService
}

func newAutomationFixture(t *testing.T, cfg config.Config, settings ...*models.AutomationSetting) *automationFixture {
	t.Helper()
	if cfg.DefaultTopic == "" {
		cfg.DefaultTopic = "motivation"
	}
	f := &automationFixture{
		posts:     newFakePostRepo(),
		accounts:  &fakeAccountRepo{},
		settings:  newFakeAutomationRepo(settings...),
		runs:      newFakeRunRepo(),
		scheduler: &fakeScheduler{},
	}
	f.posts.now = func() time.Time { return f.now }
	_, _ = f.accounts.Create(context.Background(), nil, &models.SocialAccount{IGUserID: "17841", Niche: "love"})

	accounts := NewSocialAccountService(cfg, f.accounts, &fakeInstagram{})
	gen := NewGeneratorService(cfg, f.posts, accounts, GeneratorDeps{Storage: &fakeStorage{}, Scheduler: f.scheduler})
	f.svc = NewAutomationService(cfg, f.settings, f.runs, f.posts, accounts, gen,
		WithAutomationClock(func() time.Time { return f.now }))
	return f
}

func (f *automationFixture) tick(t *testing.T, now time.Time) int {
	t.Helper()
	f.now = now
	n, err := f.svc.EvaluateAll(context.Background())
	require.NoError(t, err)
	return n
}

func (f *automationFixture) postCount() int {
	posts, _ := f.posts.List(context.Background(), "")
	return len(posts)
}

func dailyAt(slots ...models.TimeSlot) *models.AutomationSetting {
	return &models.AutomationSetting{
		AccountID:  1,
		Enabled:    true,
		Frequency:  models.FrequencyDaily,
		DailyTimes: slots,
	}
}

func TestDailySlotFiresOncePerDay(t *testing.T) {
	f := newAutomationFixture(t, config.Config{DuplicateWindow: 10 * time.Minute}, dailyAt(models.TimeSlot{Time: "09:00"}))
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, f.tick(t, day.Add(8*time.Hour+59*time.Minute)))
	assert.Equal(t, 1, f.tick(t, day.Add(9*time.Hour+5*time.Minute)))

	st, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, st.LastRunAt)
	assert.Equal(t, day.Add(9*time.Hour+5*time.Minute), *st.LastRunAt)

	assert.Equal(t, 0, f.tick(t, day.Add(9*time.Hour+6*time.Minute)))
	assert.Equal(t, 0, f.tick(t, day.Add(23*time.Hour)))

	next := day.AddDate(0, 0, 1)
	assert.Equal(t, 0, f.tick(t, next.Add(8*time.Hour+59*time.Minute)))
	assert.Equal(t, 1, f.tick(t, next.Add(9*time.Hour)))

	assert.Equal(t, 2, f.postCount())
	assert.Equal(t, 2, f.runs.count())
}

func TestDailySlotsPickLatestDue(t *testing.T) {
	f := newAutomationFixture(t, config.Config{}, dailyAt(
		models.TimeSlot{Time: "09:00"},
		models.TimeSlot{Time: "13:30", AutoApprove: true},
	))
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, f.tick(t, day.Add(14*time.Hour)))
	posts, _ := f.posts.List(context.Background(), "")
	require.Len(t, posts, 1)
	assert.Equal(t, models.PostStatusApproved, posts[0].Status)

	// The skipped 09:00 slot does not fire after the later one ran.
	assert.Equal(t, 0, f.tick(t, day.Add(14*time.Hour+time.Minute)))
	assert.True(t, f.runs.claims["1/2024-05-06/13:30"])
}

func TestConcurrentEvaluationClaimsOnce(t *testing.T) {
	f := newAutomationFixture(t, config.Config{DuplicateWindow: 10 * time.Minute}, dailyAt(models.TimeSlot{Time: "09:00"}))
	f.now = time.Date(2024, 5, 6, 9, 5, 0, 0, time.UTC)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			n, err := f.svc.EvaluateAll(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, total)
	assert.Equal(t, 1, f.runs.count())
	assert.Equal(t, 1, f.postCount())
}

func TestDuplicateWindowSuppressesGeneration(t *testing.T) {
	f := newAutomationFixture(t, config.Config{DuplicateWindow: 10 * time.Minute}, dailyAt(models.TimeSlot{Time: "09:00"}))
	f.now = time.Date(2024, 5, 6, 9, 1, 0, 0, time.UTC)
	f.posts.put(&models.Post{AccountID: int64Ptr(1), Caption: "manual", Status: models.PostStatusDraft})

	assert.Equal(t, 0, f.tick(t, time.Date(2024, 5, 6, 9, 5, 0, 0, time.UTC)))
	assert.Equal(t, 1, f.postCount())

	st, _ := f.svc.Get(context.Background(), 1)
	require.NotNil(t, st.LastRunAt)
}

func TestAutoPublishSlotEnqueuesAndOnlyDraftOverrides(t *testing.T) {
	slot := models.TimeSlot{Time: "09:00", AutoPublish: true}
	f := newAutomationFixture(t, config.Config{AutoPublishDelay: time.Minute}, dailyAt(slot))
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, f.tick(t, day.Add(9*time.Hour)))
	require.Len(t, f.scheduler.tasks, 1)

	onlyDraft := dailyAt(slot)
	onlyDraft.OnlyDraft = true
	g := newAutomationFixture(t, config.Config{}, onlyDraft)
	assert.Equal(t, 1, g.tick(t, day.Add(9*time.Hour)))
	posts, _ := g.posts.List(context.Background(), "")
	require.Len(t, posts, 1)
	assert.Equal(t, models.PostStatusDraft, posts[0].Status)
	assert.Empty(t, g.scheduler.tasks)
}

func TestWeeklySlots(t *testing.T) {
	f := newAutomationFixture(t, config.Config{}, &models.AutomationSetting{
		AccountID:   1,
		Enabled:     true,
		Frequency:   models.FrequencyWeekly,
		WeeklyTimes: []models.TimeSlot{{Weekday: "wednesday", Time: "18:00"}},
	})
	// 2024-05-06 is a Monday.
	monday := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, f.tick(t, monday.Add(20*time.Hour)))
	assert.Equal(t, 0, f.tick(t, monday.AddDate(0, 0, 2).Add(17*time.Hour)))
	assert.Equal(t, 1, f.tick(t, monday.AddDate(0, 0, 2).Add(18*time.Hour)))
	assert.Equal(t, 0, f.tick(t, monday.AddDate(0, 0, 5)))
	assert.Equal(t, 1, f.tick(t, monday.AddDate(0, 0, 9).Add(18*time.Hour+30*time.Minute)))

	assert.True(t, f.runs.claims["1/2024-05-08/wednesday 18:00"])
	assert.True(t, f.runs.claims["1/2024-05-15/wednesday 18:00"])
}

func TestCountTargetSpreadsOverWindow(t *testing.T) {
	f := newAutomationFixture(t, config.Config{}, &models.AutomationSetting{
		AccountID:  1,
		Enabled:    true,
		Frequency:  models.FrequencyDaily,
		DailyCount: 3,
		StartHour:  9,
		EndHour:    18,
	})
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, f.tick(t, day.Add(8*time.Hour)))
	assert.Equal(t, 1, f.tick(t, day.Add(9*time.Hour)))
	assert.Equal(t, 0, f.tick(t, day.Add(11*time.Hour)))
	assert.Equal(t, 1, f.tick(t, day.Add(12*time.Hour)))
	assert.Equal(t, 1, f.tick(t, day.Add(15*time.Hour)))
	assert.Equal(t, 0, f.tick(t, day.Add(17*time.Hour)))
	assert.Equal(t, 0, f.tick(t, day.Add(19*time.Hour)))

	assert.True(t, f.runs.claims["1/2024-05-06/count-3"])
	assert.Equal(t, 3, f.postCount())
}

func TestCountTargetSkippedStepDoesNotBlockLaterSteps(t *testing.T) {
	f := newAutomationFixture(t, config.Config{DuplicateWindow: 10 * time.Minute}, &models.AutomationSetting{
		AccountID:  1,
		Enabled:    true,
		Frequency:  models.FrequencyDaily,
		DailyCount: 3,
		StartHour:  9,
		EndHour:    18,
	})
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	generated := 0
	for now := day.Add(12*time.Hour + 3*time.Minute); !now.After(day.Add(18 * time.Hour)); now = now.Add(30 * time.Second) {
		generated += f.tick(t, now)
	}

	// Started late in the 12:00 step: that step fires, the 09:00 step is
	// gone, and the 15:00 step still fires.
	assert.Equal(t, 2, generated)
	assert.Equal(t, 2, f.postCount())
	assert.False(t, f.runs.claims["1/2024-05-06/count-1"])
	assert.True(t, f.runs.claims["1/2024-05-06/count-2"])
	assert.True(t, f.runs.claims["1/2024-05-06/count-3"])
}

func TestCountTargetDuplicateSkipConsumesOnlyItsStep(t *testing.T) {
	f := newAutomationFixture(t, config.Config{DuplicateWindow: 10 * time.Minute}, &models.AutomationSetting{
		AccountID:  1,
		Enabled:    true,
		Frequency:  models.FrequencyDaily,
		DailyCount: 3,
		StartHour:  9,
		EndHour:    18,
	})
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	accountID := int64(1)

	assert.Equal(t, 1, f.tick(t, day.Add(9*time.Hour)))

	// A manual draft right before the 12:00 step suppresses it.
	f.now = day.Add(11*time.Hour + 55*time.Minute)
	_, err := f.posts.Create(context.Background(), nil, &models.Post{AccountID: &accountID, Caption: "manual", Status: models.PostStatusDraft})
	require.NoError(t, err)

	assert.Equal(t, 0, f.tick(t, day.Add(12*time.Hour)))
	assert.True(t, f.runs.claims["1/2024-05-06/count-2"])
	assert.Equal(t, 0, f.tick(t, day.Add(12*time.Hour+30*time.Minute)))

	// Two drafts exist against a target of three, so the next step fires.
	assert.Equal(t, 1, f.tick(t, day.Add(15*time.Hour)))
	assert.True(t, f.runs.claims["1/2024-05-06/count-3"])
	assert.Equal(t, 3, f.postCount())
}

func newYorkConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load([]string{"--timezone", "America/New_York"})
	require.NoError(t, err)
	return *cfg
}

func TestSkippedWallTimeFiresAtTransition(t *testing.T) {
	f := newAutomationFixture(t, newYorkConfig(t), dailyAt(models.TimeSlot{Time: "02:30"}))

	// 2024-03-10 02:00 EST jumps to 03:00 EDT at 07:00 UTC.
	assert.Equal(t, 0, f.tick(t, time.Date(2024, 3, 10, 6, 59, 0, 0, time.UTC)))
	assert.Equal(t, 1, f.tick(t, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, f.tick(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))
	assert.True(t, f.runs.claims["1/2024-03-10/02:30"])
}

func TestRepeatedWallTimeFiresOnce(t *testing.T) {
	f := newAutomationFixture(t, newYorkConfig(t), dailyAt(models.TimeSlot{Time: "01:30"}))

	// 01:30 happens at 05:30 UTC (EDT) and again at 06:30 UTC (EST).
	assert.Equal(t, 1, f.tick(t, time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)))
	assert.Equal(t, 0, f.tick(t, time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC)))
	assert.Equal(t, 1, f.postCount())
}

func TestAutomationSet(t *testing.T) {
	f := newAutomationFixture(t, config.Config{})
	ctx := context.Background()

	_, err := f.svc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Set(ctx, 7, &transfer.AutomationUpdate{Enabled: true})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Set(ctx, 1, &transfer.AutomationUpdate{Frequency: "hourly"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.Set(ctx, 1, &transfer.AutomationUpdate{DailyTimes: []models.TimeSlot{{Time: "25:00"}}})
	assert.ErrorIs(t, err, ErrInvalid)

	st, err := f.svc.Set(ctx, 1, &transfer.AutomationUpdate{
		Enabled:    true,
		DailyTimes: []models.TimeSlot{{Time: "09:00", AutoPublish: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyDaily, st.Frequency)
	assert.Equal(t, 24, st.EndHour)
	assert.True(t, st.Enabled)
	require.Len(t, st.DailyTimes, 1)
}
