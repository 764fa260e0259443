package service

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mit45/AutoSocial-Ai/internal/imaging"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
)

const maxImageBytes = 20 << 20

type StoryCanvasService interface {
	// Prepare returns a URL whose image has the story frame size.
	Prepare(ctx context.Context, post *models.Post, sourceURL string) (string, error)
}

type storyCanvasService struct {
	client  *http.Client
	storage StorageService
	pr      repository.PostRepository
}

func NewStoryCanvasService(client *http.Client, storage StorageService, pr repository.PostRepository) StoryCanvasService {
	return &storyCanvasService{
		client:  client,
		storage: storage,
		pr:      pr,
	}
}

func (s *storyCanvasService) Prepare(ctx context.Context, post *models.Post, sourceURL string) (string, error) {
	data, err := fetchImage(ctx, s.client, sourceURL)
	if err != nil {
		return "", err
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return "", err
	}
	if imaging.IsStoryCanvas(img) {
		return sourceURL, nil
	}

	out, err := imaging.EncodeJPEG(imaging.FitStoryCanvas(img))
	if err != nil {
		return "", err
	}

	url, err := s.storage.Upload(ctx, out, "", "stories")
	if err != nil {
		return "", fmt.Errorf("upload story canvas: %w", err)
	}

	if err := s.pr.SetStoryImageURL(ctx, post.ID, url); err != nil {
		return "", err
	}
	post.StoryImageURL = url
	return url, nil
}

func fetchImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

// HTTPFetcher downloads images with the same size limit the story canvas uses.
func HTTPFetcher(client *http.Client) func(ctx context.Context, url string) ([]byte, error) {
	return func(ctx context.Context, url string) ([]byte, error) {
		return fetchImage(ctx, client, url)
	}
}
