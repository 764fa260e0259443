package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/imaging"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/telemetry"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

const (
	PlaceholderImageURL = "https://images.pexels.com/photos/1032650/pexels-photo-1032650.jpeg"
	hashtagCount        = 10
	uploadCategory      = "ig"
)

var fallbackHashtags = []string{"#AI", "#Technology", "#Innovation", "#Motivation", "#Success"}

type ContentGenerator interface {
	GenerateCaption(ctx context.Context, topic string) (string, error)
	GenerateHashtags(ctx context.Context, topic, caption string, count int) ([]string, error)
	GenerateImagePrompt(ctx context.Context, topic string) (string, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type TrendSource interface {
	Topic(ctx context.Context, niche string) (string, error)
}

type Renderer interface {
	Render(background []byte, text, signature, style string, canvas imaging.Canvas) ([]byte, error)
}

// PublishScheduler defers a publish attempt onto the task queue.
type PublishScheduler interface {
	EnqueuePublish(ctx context.Context, postID int64, r models.Rendition, delay time.Duration) error
}

type GeneratorService interface {
	// Generate persists one new draft. Collaborator failures fall back to
	// fixed values; only storage errors and duplicate suppression surface.
	Generate(ctx context.Context, req *transfer.GenerateRequest) (*models.Post, error)
	RenderImage(ctx context.Context, req *transfer.RenderImageRequest) (*transfer.RenderImageResponse, error)
}

type generatorService struct {
	cfg       config.Config
	pr        repository.PostRepository
	accounts  SocialAccountService
	content   ContentGenerator
	images    ImageGenerator
	trends    TrendSource
	renderer  Renderer
	storage   StorageService
	scheduler PublishScheduler
	fetch     func(ctx context.Context, url string) ([]byte, error)
	metrics   *telemetry.Metrics
}

type GeneratorDeps struct {
	Content   ContentGenerator
	Images    ImageGenerator
	Trends    TrendSource
	Renderer  Renderer
	Storage   StorageService
	Scheduler PublishScheduler
	Fetch     func(ctx context.Context, url string) ([]byte, error)
	Metrics   *telemetry.Metrics
}

func NewGeneratorService(cfg config.Config, pr repository.PostRepository, accounts SocialAccountService, deps GeneratorDeps) GeneratorService {
	return &generatorService{
		cfg:       cfg,
		pr:        pr,
		accounts:  accounts,
		content:   deps.Content,
		images:    deps.Images,
		trends:    deps.Trends,
		renderer:  deps.Renderer,
		storage:   deps.Storage,
		scheduler: deps.Scheduler,
		fetch:     deps.Fetch,
		metrics:   deps.Metrics,
	}
}

type storedImage struct {
	url   string
	local string
}

func (s *generatorService) Generate(ctx context.Context, req *transfer.GenerateRequest) (*models.Post, error) {
	postType := models.PostType(strings.ToLower(strings.TrimSpace(req.PostType)))
	if postType == "" {
		postType = models.PostTypePost
	}
	if !postType.Valid() {
		return nil, invalidf("post_type must be post, story or reels, got %q", req.PostType)
	}

	account, err := s.resolveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	niche := ""
	var accountID *int64
	if account != nil {
		niche = account.Niche
		id := account.ID
		accountID = &id
	}

	topic := s.chooseTopic(ctx, req.Topic, niche)
	caption := s.caption(ctx, topic)
	hashtags := s.hashtags(ctx, topic, caption)
	prompt := s.imagePrompt(ctx, topic)

	canvas := imaging.CanvasPost
	if postType == models.PostTypeStory {
		canvas = imaging.CanvasStory
	}
	img := s.image(ctx, prompt, caption, req.Signature, req.RenderStyle, canvas)

	status := models.PostStatusDraft
	if req.AutoApprove || req.AutoPublish {
		status = models.PostStatusApproved
	}

	post := &models.Post{
		AccountID:   accountID,
		Topic:       topic,
		Caption:     s.withAffiliate(caption),
		Hashtags:    hashtags,
		ImagePrompt: prompt,
		ImagePath:   img.local,
		ImageURL:    img.url,
		Type:        postType,
		Status:      status,
	}

	if req.DuplicateSince != nil {
		id, created, err := s.pr.CreateUnlessRecent(ctx, post, *req.DuplicateSince)
		if err != nil {
			return nil, err
		}
		if !created {
			s.discard(ctx, img)
			return nil, fmt.Errorf("%w: a draft was already created since %s", ErrConflict, req.DuplicateSince.UTC().Format(time.RFC3339))
		}
		post.ID = id
	} else {
		id, err := s.pr.Create(ctx, nil, post)
		if err != nil {
			return nil, err
		}
		post.ID = id
	}
	post.CreatedAt = time.Now().UTC()

	s.metrics.RecordDraft(ctx, string(status))
	slog.Info("draft generated", "post_id", post.ID, "topic", topic, "status", status, "type", postType)

	if req.AutoPublish {
		s.schedulePublish(ctx, post)
	}
	return post, nil
}

func (s *generatorService) resolveAccount(ctx context.Context, id *int64) (*models.SocialAccount, error) {
	if id != nil {
		return s.accounts.Get(ctx, *id)
	}
	return s.accounts.First(ctx)
}

func (s *generatorService) chooseTopic(ctx context.Context, explicit, niche string) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return t
	}
	if s.trends != nil {
		t, err := s.trends.Topic(ctx, niche)
		if err == nil && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t)
		}
		if err != nil {
			slog.Warn("trend source failed", "error", err)
		}
	}
	s.metrics.RecordFallback(ctx, "topic")
	return s.cfg.DefaultTopic
}

func (s *generatorService) caption(ctx context.Context, topic string) string {
	if s.content != nil {
		c, err := s.content.GenerateCaption(ctx, topic)
		if err == nil && strings.TrimSpace(c) != "" {
			return strings.TrimSpace(c)
		}
		slog.Warn("caption generation failed", "topic", topic, "error", err)
	}
	s.metrics.RecordFallback(ctx, "caption")
	return fmt.Sprintf("Test post about %s. #AI #Automation", topic)
}

func (s *generatorService) withAffiliate(caption string) string {
	aff := strings.TrimSpace(s.cfg.Affiliate)
	if aff == "" || strings.Contains(caption, aff) {
		return caption
	}
	return caption + "\n\n" + aff
}

func (s *generatorService) hashtags(ctx context.Context, topic, caption string) []string {
	if s.content != nil {
		tags, err := s.content.GenerateHashtags(ctx, topic, caption, hashtagCount)
		if err == nil {
			if tags = NormalizeHashtags(tags); len(tags) > 0 {
				return tags
			}
		}
		slog.Warn("hashtag generation failed", "topic", topic, "error", err)
	}
	s.metrics.RecordFallback(ctx, "hashtags")
	return append([]string(nil), fallbackHashtags...)
}

func (s *generatorService) imagePrompt(ctx context.Context, topic string) string {
	if s.content != nil {
		p, err := s.content.GenerateImagePrompt(ctx, topic)
		if err == nil && strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p)
		}
		slog.Warn("image prompt generation failed", "topic", topic, "error", err)
	}
	s.metrics.RecordFallback(ctx, "image_prompt")
	return fmt.Sprintf("Square 1:1 Instagram post image, high quality, modern style, %s", topic)
}

// image generates, renders and stores the post image. Each step falls back
// independently; the placeholder URL is used when nothing could be stored.
func (s *generatorService) image(ctx context.Context, prompt, caption, signature, style string, canvas imaging.Canvas) storedImage {
	if s.images == nil {
		s.metrics.RecordFallback(ctx, "image")
		return storedImage{url: PlaceholderImageURL}
	}

	data, err := s.images.GenerateImage(ctx, prompt)
	if err != nil || len(data) == 0 {
		slog.Warn("image generation failed, using placeholder", "error", err)
		s.metrics.RecordFallback(ctx, "image")
		return storedImage{url: PlaceholderImageURL}
	}

	if s.renderer != nil {
		rendered, err := s.renderer.Render(data, StripImagePrompt(caption), signature, style, canvas)
		if err != nil {
			slog.Warn("render failed, using background only", "error", err)
			s.metrics.RecordFallback(ctx, "render")
		} else {
			data = rendered
		}
	}

	return s.store(ctx, data)
}

func (s *generatorService) store(ctx context.Context, data []byte) storedImage {
	url, err := s.storage.Upload(ctx, data, "", uploadCategory)
	if err == nil {
		return storedImage{url: url}
	}
	if !errors.Is(err, ErrStorageDisabled) {
		slog.Warn("image upload failed, serving locally", "error", err)
	}
	s.metrics.RecordFallback(ctx, "upload")

	path, err := s.storage.SaveLocal(data, "")
	if err != nil {
		slog.Error("saving image locally failed, using placeholder", "error", err)
		return storedImage{url: PlaceholderImageURL}
	}
	return storedImage{url: path, local: path}
}

func (s *generatorService) discard(ctx context.Context, img storedImage) {
	if img.local != "" {
		if err := s.storage.RemoveLocal(img.local); err != nil {
			slog.Warn("removing discarded image failed", "path", img.local, "error", err)
		}
		return
	}
	if img.url != "" && img.url != PlaceholderImageURL {
		if _, err := s.storage.Delete(ctx, img.url); err != nil {
			slog.Warn("deleting discarded image failed", "url", img.url, "error", err)
		}
	}
}

func (s *generatorService) schedulePublish(ctx context.Context, post *models.Post) {
	if err := s.pr.ClearSchedules(ctx, post.ID); err != nil {
		slog.Warn("clearing schedules failed", "post_id", post.ID, "error", err)
	}
	post.ScheduledAtPost, post.ScheduledAtStory = nil, nil

	if s.scheduler == nil {
		slog.Warn("auto publish requested but no publish queue is configured", "post_id", post.ID)
		return
	}
	if err := s.scheduler.EnqueuePublish(ctx, post.ID, post.DefaultRendition(), s.cfg.AutoPublishDelay); err != nil {
		slog.Error("enqueue auto publish failed", "post_id", post.ID, "error", err)
		return
	}
	slog.Info("auto publish enqueued", "post_id", post.ID, "delay", s.cfg.AutoPublishDelay)
}

func (s *generatorService) RenderImage(ctx context.Context, req *transfer.RenderImageRequest) (*transfer.RenderImageResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalidf("text is required")
	}
	if strings.TrimSpace(req.BackgroundURL) == "" {
		return nil, invalidf("background_url is required")
	}
	canvas := imaging.Canvas(strings.ToLower(strings.TrimSpace(req.Canvas)))
	switch canvas {
	case "", "square":
		canvas = imaging.CanvasPost
	case imaging.CanvasPost, imaging.CanvasStory:
	default:
		return nil, invalidf("canvas must be post or story, got %q", req.Canvas)
	}

	bg, err := s.background(ctx, req.BackgroundURL)
	if err != nil {
		return nil, err
	}

	out, err := s.renderer.Render(bg, req.Text, req.Signature, req.Style, canvas)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			return nil, invalidf("background is not a supported image")
		}
		return nil, fmt.Errorf("render image: %w", err)
	}

	img := s.store(ctx, out)
	if img.url == PlaceholderImageURL {
		return nil, errors.New("rendered image could not be stored")
	}
	return &transfer.RenderImageResponse{ImageURL: img.url}, nil
}

func (s *generatorService) background(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, LocalMediaPrefix) {
		data, err := os.ReadFile(filepath.Join(s.cfg.MediaDir, filepath.Base(ref)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("background %s: %w", ref, ErrNotFound)
			}
			return nil, err
		}
		return data, nil
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return nil, invalidf("background_url must be an HTTP(S) URL or a %s path", LocalMediaPrefix)
	}
	if s.fetch == nil {
		return nil, errors.New("no image fetcher configured")
	}
	data, err := s.fetch(ctx, ref)
	if err != nil {
		return nil, invalidf("fetch background: %v", err)
	}
	return data, nil
}
