package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

var (
	_ repository.PostRepository           = (*fakePostRepo)(nil)
	_ repository.SocialAccountRepository  = (*fakeAccountRepo)(nil)
	_ repository.PostingHistoryRepository = (*fakeHistoryRepo)(nil)
	_ repository.AutomationRepository     = (*fakeAutomationRepo)(nil)
	_ repository.AutomationRunRepository  = (*fakeRunRepo)(nil)
	_ InstagramService                    = (*fakeInstagram)(nil)
	_ StorageService                      = (*fakeStorage)(nil)
)

type fakePostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*models.Post
	nextID int64
	locks  map[string]bool
	now    func() time.Time
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		posts: map[int64]*models.Post{},
		locks: map[string]bool{},
		now:   time.Now,
	}
}

func (r *fakePostRepo) put(p *models.Post) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	cp := *p
	r.posts[p.ID] = &cp
	return p
}

func (r *fakePostRepo) get(id int64) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.posts[id]
	return &cp
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return r.put(post).ID, nil
}

func (r *fakePostRepo) CreateUnlessRecent(ctx context.Context, post *models.Post, since time.Time) (int64, bool, error) {
	n, _ := r.CountCreatedSince(ctx, post.AccountID, since)
	if n > 0 {
		return 0, false, nil
	}
	return r.put(post).ID, true, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) List(ctx context.Context, status models.PostStatus) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if status == "" || p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status != models.PostStatusApproved && p.Status != models.PostStatusPublished {
			continue
		}
		if len(p.DueRenditions(now)) > 0 {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePostRepo) CountCreatedSince(ctx context.Context, accountID *int64, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.posts {
		if sameAccount(p.AccountID, accountID) && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func sameAccount(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *fakePostRepo) Approve(ctx context.Context, id int64) (bool, error) {
	return r.update(id, func(p *models.Post) bool {
		if p.Status == models.PostStatusPublished {
			return false
		}
		p.Status = models.PostStatusApproved
		p.ErrorMessage = ""
		return true
	})
}

func (r *fakePostRepo) SetSchedule(ctx context.Context, id int64, rend models.Rendition, at *time.Time) error {
	_, err := r.update(id, func(p *models.Post) bool {
		if rend == models.RenditionStory {
			p.ScheduledAtStory = at
		} else {
			p.ScheduledAtPost = at
		}
		return true
	})
	return err
}

func (r *fakePostRepo) ClearSchedules(ctx context.Context, id int64) error {
	_, err := r.update(id, func(p *models.Post) bool {
		p.ScheduledAtPost, p.ScheduledAtStory = nil, nil
		return true
	})
	return err
}

func (r *fakePostRepo) SetStoryImageURL(ctx context.Context, id int64, url string) error {
	_, err := r.update(id, func(p *models.Post) bool {
		p.StoryImageURL = url
		return true
	})
	return err
}

func (r *fakePostRepo) MarkPublished(ctx context.Context, id int64, rend models.Rendition, externalID string, at time.Time, accountID *int64) error {
	_, err := r.update(id, func(p *models.Post) bool {
		if rend == models.RenditionStory {
			p.PublishedAtStory, p.ExternalIDStory, p.ScheduledAtStory, p.ErrorStory = &at, externalID, nil, ""
			p.ErrorMessage = p.ErrorPost
		} else {
			p.PublishedAtPost, p.ExternalIDPost, p.ScheduledAtPost, p.ErrorPost = &at, externalID, nil, ""
			p.ErrorMessage = p.ErrorStory
		}
		if accountID != nil {
			p.AccountID = accountID
		}
		p.Status = models.PostStatusPublished
		return true
	})
	return err
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, id int64, rend models.Rendition, message string) error {
	_, err := r.update(id, func(p *models.Post) bool {
		if rend == models.RenditionStory {
			p.ErrorStory, p.ScheduledAtStory = message, nil
		} else {
			p.ErrorPost, p.ScheduledAtPost = message, nil
		}
		p.ErrorMessage = message
		p.Status = models.FailureStatus(p)
		return true
	})
	return err
}

func (r *fakePostRepo) TryLockPublish(ctx context.Context, id int64, rend models.Rendition) (func(), bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d/%s", id, rend)
	if r.locks[key] {
		return nil, false, nil
	}
	r.locks[key] = true
	return func() {
		r.mu.Lock()
		delete(r.locks, key)
		r.mu.Unlock()
	}, true, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepo) update(id int64, fn func(p *models.Post) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	return fn(p), nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.SocialAccount
}

func (r *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sa
	cp.ID = int64(len(r.accounts) + 1)
	r.accounts = append(r.accounts, &cp)
	return cp.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) First(ctx context.Context) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.accounts) == 0 {
		return nil, nil
	}
	cp := *r.accounts[0]
	return &cp, nil
}

func (r *fakeAccountRepo) List(ctx context.Context) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.SocialAccount(nil), r.accounts...), nil
}

func (r *fakeAccountRepo) ListExpiringBefore(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.accounts {
		if a.TokenExpiresAt != nil && a.TokenExpiresAt.Before(before) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) SetToken(ctx context.Context, id int64, oldAccessToken, accessToken string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			if a.AccessToken != oldAccessToken {
				return fmt.Errorf("token changed concurrently")
			}
			a.AccessToken, a.TokenExpiresAt = accessToken, expiresAt
			return nil
		}
	}
	return fmt.Errorf("account %d not found", id)
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ph
	cp.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, &cp)
	return cp.ID, nil
}

func (r *fakeHistoryRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostingHistory
	for _, e := range r.entries {
		if e.PostID == postID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAutomationRepo struct {
	mu       sync.Mutex
	settings map[int64]*models.AutomationSetting
	lastRuns map[int64]time.Time
}

func newFakeAutomationRepo(settings ...*models.AutomationSetting) *fakeAutomationRepo {
	r := &fakeAutomationRepo{settings: map[int64]*models.AutomationSetting{}, lastRuns: map[int64]time.Time{}}
	for i, s := range settings {
		if s.ID == 0 {
			s.ID = int64(i + 1)
		}
		r.settings[s.ID] = s
	}
	return r
}

func (r *fakeAutomationRepo) GetByAccountID(ctx context.Context, accountID int64) (*models.AutomationSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.settings {
		if s.AccountID == accountID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAutomationRepo) ListEnabled(ctx context.Context) ([]*models.AutomationSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AutomationSetting
	for _, s := range r.settings {
		if s.Enabled {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAutomationRepo) Upsert(ctx context.Context, s *models.AutomationSetting) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.settings {
		if existing.AccountID == s.AccountID {
			cp := *s
			cp.ID = id
			cp.LastRunAt = existing.LastRunAt
			r.settings[id] = &cp
			return id, nil
		}
	}
	cp := *s
	cp.ID = int64(len(r.settings) + 1)
	r.settings[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeAutomationRepo) SetLastRun(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[id]; ok {
		at := at
		s.LastRunAt = &at
	}
	return nil
}

type fakeRunRepo struct {
	mu     sync.Mutex
	claims map[string]bool
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{claims: map[string]bool{}}
}

func (r *fakeRunRepo) Claim(ctx context.Context, settingID int64, runDate, slot string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d/%s/%s", settingID, runDate, slot)
	if r.claims[key] {
		return 0, repository.ErrAlreadyClaimed
	}
	r.claims[key] = true
	return int64(len(r.claims)), nil
}

func (r *fakeRunRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims)
}

// fakeInstagram replays scripted errors before succeeding.
type fakeInstagram struct {
	mu          sync.Mutex
	createErrs  []error
	publishErrs []error
	creates     int
	publishes   int
	payloads    []transfer.ContainerPayload
	users       []string
	block       chan struct{}
}

func (f *fakeInstagram) CreateContainer(ctx context.Context, igUserID, accessToken string, payload transfer.ContainerPayload) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.payloads = append(f.payloads, payload)
	f.users = append(f.users, igUserID+":"+accessToken)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("container-%d", f.creates), nil
}

func (f *fakeInstagram) PublishContainer(ctx context.Context, igUserID, accessToken, creationID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes++
	if len(f.publishErrs) > 0 {
		err := f.publishErrs[0]
		f.publishErrs = f.publishErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "media-" + creationID, nil
}

func (f *fakeInstagram) RefreshToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error) {
	return &transfer.InstagramToken{AccessToken: accessToken + "-refreshed", ExpiresAt: time.Now().Add(60 * 24 * time.Hour)}, nil
}

func (f *fakeInstagram) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.publishes
}

type fakeStorage struct {
	mu      sync.Mutex
	fail    bool
	uploads []string
	deleted []string
	local   []string
	removed []string
}

func (s *fakeStorage) Upload(ctx context.Context, data []byte, filename, category string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", ErrStorageDisabled
	}
	if filename == "" {
		filename = fmt.Sprintf("file-%d.png", len(s.uploads)+1)
	}
	url := "https://cdn.example.com/" + category + "/" + filename
	s.uploads = append(s.uploads, url)
	return url, nil
}

func (s *fakeStorage) Delete(ctx context.Context, publicURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, publicURL)
	return true, nil
}

func (s *fakeStorage) SaveLocal(data []byte, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filename == "" {
		filename = fmt.Sprintf("local-%d.png", len(s.local)+1)
	}
	path := LocalMediaPrefix + filename
	s.local = append(s.local, path)
	return path, nil
}

func (s *fakeStorage) RemoveLocal(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, path)
	return nil
}

func transientErr() error {
	return &PublishError{Kind: KindTransient, StatusCode: 500, Code: 2, Message: "Service temporarily unavailable"}
}

func notReadyErr() error {
	return &PublishError{Kind: KindNotReady, StatusCode: 400, Code: 9007, Message: "Media ID is not available"}
}

func permanentErr() error {
	return &PublishError{Kind: KindPermanent, StatusCode: 400, Code: 100, Message: "Invalid parameter"}
}

func int64Ptr(v int64) *int64 { return &v }
