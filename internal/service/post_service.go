package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

type PostService interface {
	Create(ctx context.Context, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context, status string) ([]*models.Post, error)
	Get(ctx context.Context, postID int64) (*models.Post, error)
	Approve(ctx context.Context, postID int64) (*models.Post, error)
	// Remove deletes the post row, then best-effort its stored images.
	Remove(ctx context.Context, postID int64) error
}

type postService struct {
	pr      repository.PostRepository
	storage StorageService
}

func NewPostService(pr repository.PostRepository, storage StorageService) PostService {
	return &postService{
		pr:      pr,
		storage: storage,
	}
}

func (s *postService) Create(ctx context.Context, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}

	postType := models.PostType(strings.ToLower(strings.TrimSpace(pc.PostType)))
	if postType == "" {
		postType = models.PostTypePost
	}
	if !postType.Valid() {
		return nil, invalidf("post_type must be post, story or reels, got %q", pc.PostType)
	}
	if postType != models.PostTypeStory && strings.TrimSpace(pc.Caption) == "" {
		return nil, invalidf("caption cannot be empty")
	}

	post := &models.Post{
		AccountID: pc.AccountID,
		Topic:     strings.TrimSpace(pc.Topic),
		Caption:   strings.TrimSpace(pc.Caption),
		Hashtags:  NormalizeHashtags(pc.Hashtags),
		ImageURL:  strings.TrimSpace(pc.ImageURL),
		Type:      postType,
		Status:    models.PostStatusDraft,
	}

	id, err := s.pr.Create(ctx, nil, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *postService) List(ctx context.Context, status string) ([]*models.Post, error) {
	var filter models.PostStatus
	if status != "" {
		st, err := models.ParsePostStatus(strings.ToLower(status))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
		}
		filter = st
	}

	posts, err := s.pr.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Get(ctx context.Context, postID int64) (*models.Post, error) {
	if postID <= 0 {
		return nil, invalidf("post id is not valid")
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		err = fmt.Errorf("post %d: %w", postID, ErrNotFound)
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (s *postService) Approve(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	if !models.CanApprove(post.Status) {
		return nil, invalidf("post %d is %s and cannot be approved", post.ID, post.Status)
	}

	ok, err := s.pr.Approve(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("post %d changed while approving: %w", post.ID, ErrConflict)
	}

	slog.Info("post approved", "post_id", post.ID)
	return s.Get(ctx, post.ID)
}

func (s *postService) Remove(ctx context.Context, postID int64) error {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}

	if err := s.pr.Remove(ctx, post.ID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	s.cleanupImages(ctx, post)
	return nil
}

func (s *postService) cleanupImages(ctx context.Context, post *models.Post) {
	if s.storage == nil {
		return
	}

	seen := map[string]bool{}
	for _, ref := range []string{post.ImagePath, post.ImageURL, post.StoryImageURL} {
		if ref == "" || ref == PlaceholderImageURL || seen[ref] {
			continue
		}
		seen[ref] = true

		if strings.HasPrefix(ref, LocalMediaPrefix) {
			if err := s.storage.RemoveLocal(ref); err != nil {
				slog.Warn("removing local image failed", "post_id", post.ID, "path", ref, "error", err)
			}
			continue
		}
		if _, err := s.storage.Delete(ctx, ref); err != nil && !errors.Is(err, ErrStorageDisabled) {
			slog.Warn("deleting remote image failed", "post_id", post.ID, "url", ref, "error", err)
		}
	}
}
