package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

// Graph API error codes that the platform documents as retryable.
var transientCodes = map[int]bool{1: true, 2: true, 4: true, 17: true, 32: true, 613: true}

const (
	codeTokenExpired    = 190
	codeMediaNotReady   = 9007
	subcodeMediaPending = 2207027

	maxRawBody = 500
)

type InstagramService interface {
	CreateContainer(ctx context.Context, igUserID, accessToken string, payload transfer.ContainerPayload) (string, error)
	PublishContainer(ctx context.Context, igUserID, accessToken, creationID string) (string, error)
	RefreshToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error)
}

type instagramService struct {
	baseURL    string
	refreshURL string
	client     *http.Client
}

func NewInstagramService(cfg config.Config) InstagramService {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &instagramService{
		baseURL:    strings.TrimRight(cfg.GraphAPIBase, "/"),
		refreshURL: cfg.InstagramRefreshURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (ig *instagramService) CreateContainer(ctx context.Context, igUserID, accessToken string, payload transfer.ContainerPayload) (string, error) {
	form := url.Values{}
	form.Set("image_url", payload.ImageURL)
	form.Set("access_token", accessToken)
	if payload.MediaType != "" {
		form.Set("media_type", payload.MediaType)
	}
	if payload.Caption != "" {
		form.Set("caption", payload.Caption)
	}

	return ig.post(ctx, fmt.Sprintf("%s/%s/media", ig.baseURL, igUserID), form)
}

func (ig *instagramService) PublishContainer(ctx context.Context, igUserID, accessToken, creationID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", creationID)
	form.Set("access_token", accessToken)

	return ig.post(ctx, fmt.Sprintf("%s/%s/media_publish", ig.baseURL, igUserID), form)
}

func (ig *instagramService) post(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", &PublishError{Kind: KindTransient, Message: fmt.Sprintf("HTTP request error: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &PublishError{Kind: KindTransient, StatusCode: resp.StatusCode, Message: fmt.Sprintf("error reading response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyResponse(resp.StatusCode, body)
	}

	var result transfer.InstagramIDResponse
	if err := json.Unmarshal(body, &result); err != nil || result.ID == "" {
		return "", &PublishError{
			Kind:       KindUnexpected,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body)),
		}
	}

	return result.ID, nil
}

// classifyResponse turns a non-2xx Graph API response into a PublishError.
func classifyResponse(status int, body []byte) *PublishError {
	var envelope transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || (envelope.Error.Message == "" && envelope.Error.Code == 0) {
		kind := KindUnexpected
		if status >= 500 {
			kind = KindTransient
		}
		return &PublishError{
			Kind:       kind,
			StatusCode: status,
			Message:    fmt.Sprintf("HTTP %d: %s", status, truncate(string(body))),
		}
	}

	e := envelope.Error
	pe := &PublishError{
		StatusCode: status,
		Code:       e.Code,
		Subcode:    e.ErrorSubcode,
		Message:    e.Message,
	}
	if e.ErrorUserMsg != "" {
		pe.Message = fmt.Sprintf("%s: %s", e.Message, e.ErrorUserMsg)
	}

	switch {
	case e.Code == codeTokenExpired:
		pe.Kind = KindPermanent
		pe.Message = "Instagram access token expired. Please refresh your token. Original: " + e.Message
	case e.Code == codeMediaNotReady || e.ErrorSubcode == subcodeMediaPending:
		pe.Kind = KindNotReady
	case e.IsTransient || transientCodes[e.Code] || status >= 500:
		pe.Kind = KindTransient
	default:
		pe.Kind = KindPermanent
	}
	return pe
}

func (ig *instagramService) RefreshToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error) {
	q := url.Values{}
	q.Set("grant_type", "ig_refresh_token")
	q.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ig.refreshURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyResponse(resp.StatusCode, body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("refresh response carried no access token")
	}

	return &transfer.InstagramToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   GetExpiresAt(result.ExpiresIn),
	}, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxRawBody {
		return s[:maxRawBody] + "..."
	}
	return s
}
