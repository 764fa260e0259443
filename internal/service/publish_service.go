package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/telemetry"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

// RetryPolicy bounds the Graph API retries of one publish attempt.
type RetryPolicy struct {
	CreateAttempts  int
	CreateInitial   time.Duration
	CreateMax       time.Duration
	PublishAttempts int
	PublishDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		CreateAttempts:  6,
		CreateInitial:   2 * time.Second,
		CreateMax:       30 * time.Second,
		PublishAttempts: 6,
		PublishDelay:    5 * time.Second,
	}
}

type PublishService interface {
	// Publish sends one rendition of an approved post, or parks it for the
	// sweeper when ScheduledAt is set.
	Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
	// Republish re-approves a draft or failed post and publishes it again.
	// Published posts are sent again without a status reset.
	Republish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
}

type publishCredentials struct {
	igUserID    string
	accessToken string
	accountID   *int64
}

type publishService struct {
	cfg      config.Config
	pr       repository.PostRepository
	ph       repository.PostingHistoryRepository
	accounts SocialAccountService
	ig       InstagramService
	canvas   StoryCanvasService
	metrics  *telemetry.Metrics
	retry    RetryPolicy
	now      func() time.Time
}

type PublishOption func(*publishService)

func WithRetryPolicy(p RetryPolicy) PublishOption {
	return func(s *publishService) { s.retry = p }
}

func WithPublishClock(now func() time.Time) PublishOption {
	return func(s *publishService) { s.now = now }
}

func WithStoryCanvas(c StoryCanvasService) PublishOption {
	return func(s *publishService) { s.canvas = c }
}

func WithPublishMetrics(m *telemetry.Metrics) PublishOption {
	return func(s *publishService) { s.metrics = m }
}

func NewPublishService(
	cfg config.Config,
	pr repository.PostRepository,
	ph repository.PostingHistoryRepository,
	accounts SocialAccountService,
	ig InstagramService,
	opts ...PublishOption) PublishService {
	s := &publishService{
		cfg:      cfg,
		pr:       pr,
		ph:       ph,
		accounts: accounts,
		ig:       ig,
		retry:    DefaultRetryPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *publishService) Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	return s.publish(ctx, req, false)
}

func (s *publishService) Republish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	post, err := s.pr.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("post %d: %w", req.PostID, ErrNotFound)
	}

	switch post.Status {
	case models.PostStatusDraft, models.PostStatusFailed:
		ok, err := s.pr.Approve(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("post %d changed while re-approving: %w", post.ID, ErrConflict)
		}
		return s.publish(ctx, req, false)
	case models.PostStatusPublished:
		return s.publish(ctx, req, true)
	default:
		return s.publish(ctx, req, false)
	}
}

func (s *publishService) publish(ctx context.Context, req *transfer.PublishRequest, republish bool) (*transfer.PublishResult, error) {
	post, err := s.pr.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("post %d: %w", req.PostID, ErrNotFound)
	}

	rendition, err := resolveRendition(post, req.PostType)
	if err != nil {
		return nil, err
	}
	if err := checkPublishable(post, rendition, republish); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.ScheduledAt) != "" {
		return s.schedule(ctx, post, rendition, req.ScheduledAt)
	}

	creds, err := s.resolveCredentials(ctx, req, post)
	if err != nil {
		return nil, err
	}

	unlock, ok, err := s.pr.TryLockPublish(ctx, post.ID, rendition)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("post %d %s is already being published: %w", post.ID, rendition, ErrConflict)
	}
	defer unlock()

	// Re-read under the lock so a publish that finished meanwhile is seen.
	post, err = s.pr.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("post %d: %w", req.PostID, ErrNotFound)
	}
	if err := checkPublishable(post, rendition, republish); err != nil {
		return nil, err
	}

	payload, err := s.buildPayload(ctx, post, rendition)
	if err != nil {
		if markErr := s.pr.MarkFailed(ctx, post.ID, rendition, err.Error()); markErr != nil {
			return nil, markErr
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}

	return s.send(ctx, post, rendition, creds, payload)
}

func resolveRendition(post *models.Post, postType string) (models.Rendition, error) {
	if postType == "" {
		return post.DefaultRendition(), nil
	}
	r := models.Rendition(strings.ToLower(strings.TrimSpace(postType)))
	if !r.Valid() {
		return "", invalidf("post_type must be post or story, got %q", postType)
	}
	return r, nil
}

// checkPublishable allows approved posts, and published posts when the
// rendition is still pending or a republish was requested.
func checkPublishable(post *models.Post, r models.Rendition, republish bool) error {
	pendingRendition := post.Status == models.PostStatusPublished && post.PublishedAt(r) == nil
	if models.CanAttemptPublish(post.Status, republish || pendingRendition) {
		return nil
	}
	if post.Status == models.PostStatusPublished {
		return fmt.Errorf("post %d %s is already published: %w", post.ID, r, ErrConflict)
	}
	return invalidf("post %d is %s; only approved posts can be published", post.ID, post.Status)
}

func (s *publishService) schedule(ctx context.Context, post *models.Post, r models.Rendition, raw string) (*transfer.PublishResult, error) {
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return nil, invalidf("scheduled_at must be RFC 3339, got %q", raw)
	}
	at = at.UTC()
	if !at.After(s.now()) {
		return nil, invalidf("scheduled_at %s is in the past", at.Format(time.RFC3339))
	}

	if err := s.pr.SetSchedule(ctx, post.ID, r, &at); err != nil {
		return nil, err
	}

	slog.Info("publish scheduled", "post_id", post.ID, "rendition", r, "scheduled_at", at)
	return &transfer.PublishResult{
		Success:     true,
		PostID:      post.ID,
		Rendition:   string(r),
		Status:      string(post.Status),
		ScheduledAt: &at,
	}, nil
}

func (s *publishService) resolveCredentials(ctx context.Context, req *transfer.PublishRequest, post *models.Post) (*publishCredentials, error) {
	if req.AccountID != nil {
		acc, err := s.accounts.Get(ctx, *req.AccountID)
		if err != nil {
			return nil, err
		}
		return s.accountCredentials(acc)
	}

	if req.IGUserID != "" {
		if req.AccessToken == "" {
			return nil, invalidf("access_token is required when ig_user_id is given")
		}
		return &publishCredentials{igUserID: req.IGUserID, accessToken: req.AccessToken}, nil
	}

	if post.AccountID != nil {
		acc, err := s.accounts.Get(ctx, *post.AccountID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if acc != nil {
			return s.accountCredentials(acc)
		}
	}

	acc, err := s.accounts.First(ctx)
	if err != nil {
		return nil, err
	}
	if acc != nil {
		return s.accountCredentials(acc)
	}

	if s.cfg.InstagramUserID != "" && s.cfg.InstagramAccessToken != "" {
		return &publishCredentials{igUserID: s.cfg.InstagramUserID, accessToken: s.cfg.InstagramAccessToken}, nil
	}

	return nil, invalidf("no Instagram account configured")
}

func (s *publishService) accountCredentials(acc *models.SocialAccount) (*publishCredentials, error) {
	token, err := s.accounts.AccessToken(acc)
	if err != nil {
		return nil, err
	}
	id := acc.ID
	return &publishCredentials{igUserID: acc.IGUserID, accessToken: token, accountID: &id}, nil
}

func (s *publishService) buildPayload(ctx context.Context, post *models.Post, r models.Rendition) (transfer.ContainerPayload, error) {
	imageURL, err := PublicImageURL(post.ImageURLFor(r), s.cfg.BaseURL)
	if err != nil {
		return transfer.ContainerPayload{}, err
	}

	if r == models.RenditionStory {
		if s.canvas != nil {
			converted, err := s.canvas.Prepare(ctx, post, imageURL)
			if err != nil {
				slog.Warn("story canvas conversion failed, publishing original", "post_id", post.ID, "error", err)
			} else if converted != "" {
				imageURL = converted
			}
		}
		return transfer.ContainerPayload{ImageURL: imageURL, MediaType: "STORIES"}, nil
	}

	caption := FormatCaption(post.Caption, post.Hashtags)
	if StripImagePrompt(post.Caption) == "" {
		return transfer.ContainerPayload{}, errors.New("caption is required for feed posts")
	}
	return transfer.ContainerPayload{ImageURL: imageURL, Caption: caption}, nil
}

// PublicImageURL resolves a local media path against baseURL and rejects any
// URL the platform could not fetch.
func PublicImageURL(raw, baseURL string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("image_url is required")
	}
	if strings.HasPrefix(raw, "/") {
		if baseURL == "" {
			return "", fmt.Errorf("image_url %q is a local path and no base URL is configured", raw)
		}
		raw = strings.TrimRight(baseURL, "/") + raw
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("image_url must be a public HTTP(S) URL, got %q", raw)
	}

	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return "", fmt.Errorf("image_url host %q is not public", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return "", fmt.Errorf("image_url host %q is not public", host)
		}
	}
	return u.String(), nil
}

func (s *publishService) send(ctx context.Context, post *models.Post, r models.Rendition, creds *publishCredentials, payload transfer.ContainerPayload) (*transfer.PublishResult, error) {
	attempts := 0
	mediaID, err := s.createAndPublish(ctx, post.ID, r, creds, payload, &attempts)

	history := &models.PostingHistory{
		PostID:    post.ID,
		AccountID: creds.accountID,
		Rendition: r,
		Attempts:  attempts,
	}
	result := &transfer.PublishResult{
		PostID:    post.ID,
		Rendition: string(r),
		Attempts:  attempts,
	}

	if err != nil {
		msg := failureMessage(r, err)
		slog.Error("publish failed", "post_id", post.ID, "rendition", r, "attempts", attempts, "error", msg)
		s.metrics.RecordPublishOutcome(ctx, string(r), false)

		if markErr := s.pr.MarkFailed(ctx, post.ID, r, msg); markErr != nil {
			return nil, markErr
		}
		history.ErrorMessage = msg
		s.recordHistory(ctx, history)

		result.Status = string(models.FailureStatus(post))
		result.Error = msg
		return result, nil
	}

	at := s.now().UTC()
	if err := s.pr.MarkPublished(ctx, post.ID, r, mediaID, at, creds.accountID); err != nil {
		return nil, err
	}
	history.ExternalID = mediaID
	s.recordHistory(ctx, history)
	s.metrics.RecordPublishOutcome(ctx, string(r), true)
	slog.Info("post published", "post_id", post.ID, "rendition", r, "ig_post_id", mediaID, "attempts", attempts)

	result.Success = true
	result.Status = string(models.PostStatusPublished)
	result.ExternalID = mediaID
	result.PublishedAt = &at
	return result, nil
}

func (s *publishService) createAndPublish(ctx context.Context, postID int64, r models.Rendition, creds *publishCredentials, payload transfer.ContainerPayload, attempts *int) (string, error) {
	var containerID string
	create := func() error {
		*attempts++
		s.metrics.RecordPublishAttempt(ctx, string(r), "create")
		id, err := s.ig.CreateContainer(ctx, creds.igUserID, creds.accessToken, payload)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		containerID = id
		return nil
	}
	notify := func(step string) backoff.Notify {
		return func(err error, wait time.Duration) {
			slog.Warn("retrying graph api call", "post_id", postID, "rendition", r, "step", step, "attempt", *attempts, "wait", wait, "error", err)
		}
	}

	if err := backoff.RetryNotify(create, s.createBackOff(ctx), notify("create")); err != nil {
		return "", err
	}

	var mediaID string
	publish := func() error {
		*attempts++
		s.metrics.RecordPublishAttempt(ctx, string(r), "publish")
		id, err := s.ig.PublishContainer(ctx, creds.igUserID, creds.accessToken, containerID)
		if err != nil {
			if IsNotReady(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		mediaID = id
		return nil
	}

	if err := backoff.RetryNotify(publish, s.publishBackOff(ctx), notify("publish")); err != nil {
		return "", err
	}
	return mediaID, nil
}

func (s *publishService) createBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.CreateInitial
	b.MaxInterval = s.retry.CreateMax
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, retries(s.retry.CreateAttempts)), ctx)
}

func (s *publishService) publishBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewConstantBackOff(s.retry.PublishDelay)
	return backoff.WithContext(backoff.WithMaxRetries(b, retries(s.retry.PublishAttempts)), ctx)
}

func retries(attempts int) uint64 {
	if attempts <= 1 {
		return 0
	}
	return uint64(attempts - 1)
}

func failureMessage(r models.Rendition, err error) string {
	var pe *PublishError
	if errors.As(err, &pe) && pe.Kind == KindUnexpected && pe.Code == 0 && pe.StatusCode >= 200 && pe.StatusCode < 300 {
		return fmt.Sprintf("Unexpected publish response (%s): %s", r, pe.Message)
	}
	return err.Error()
}

func (s *publishService) recordHistory(ctx context.Context, h *models.PostingHistory) {
	if s.ph == nil {
		return
	}
	if _, err := s.ph.Create(ctx, h); err != nil {
		slog.Warn("failed to record posting history", "post_id", h.PostID, "error", err)
	}
}
