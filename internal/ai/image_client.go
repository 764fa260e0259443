package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	imageModel     = "dall-e-3"
	imageSize      = "1024x1024"
	maxImageBytes  = 20 << 20
	imageRateLimit = 5 // requests per minute
)

var ErrNoImage = errors.New("image API returned no image")

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ImageClient calls an OpenAI-compatible image generation endpoint and
// downloads the resulting image.
type ImageClient struct {
	endpoint    string
	apiKey      string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewImageClient(endpoint, apiKey string, timeout time.Duration) *ImageClient {
	return &ImageClient{
		endpoint:    endpoint,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     newBreaker("ImageAPI"),
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/imageRateLimit), imageRateLimit),
	}
}

// GenerateImage returns the raw bytes of one generated image.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New("image API key is not configured")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		url, err := c.requestImage(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return c.download(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	return result.([]byte), nil
}

func (c *ImageClient) requestImage(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(imageRequest{
		Model:          imageModel,
		Prompt:         prompt,
		Size:           imageSize,
		N:              1,
		ResponseFormat: "url",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out imageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode image response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("image API: %s (status %d)", out.Error.Message, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("image API: status %d", resp.StatusCode)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", ErrNoImage
	}
	return out.Data[0].URL, nil
}

func (c *ImageClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download generated image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}
