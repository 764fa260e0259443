package transfer

import "time"

type PostCreation struct {
	AccountID *int64   `json:"account_id"`
	Topic     string   `json:"topic"`
	Caption   string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
	ImageURL  string   `json:"image_url"`
	PostType  string   `json:"post_type"`
}

type GenerateRequest struct {
	AccountID   *int64 `json:"account_id"`
	Topic       string `json:"topic"`
	PostType    string `json:"post_type"`
	RenderStyle string `json:"render_style"`
	Signature   string `json:"signature"`
	AutoApprove bool   `json:"auto_approve"`
	AutoPublish bool   `json:"auto_publish"`

	// DuplicateSince makes the insert conditional on no other draft for the
	// account being created at or after this instant.
	DuplicateSince *time.Time `json:"-"`
}

// PublishRequest carries the operator overrides for one publish call.
type PublishRequest struct {
	PostID      int64  `json:"-"`
	AccountID   *int64 `json:"account_id"`
	IGUserID    string `json:"ig_user_id"`
	AccessToken string `json:"access_token"`
	PostType    string `json:"post_type"`
	ScheduledAt string `json:"scheduled_at"`
}

type PublishResult struct {
	Success     bool       `json:"success"`
	PostID      int64      `json:"post_id"`
	Rendition   string     `json:"rendition"`
	Status      string     `json:"status"`
	ExternalID  string     `json:"ig_post_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Attempts    int        `json:"attempts,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type SweepResult struct {
	Checked   int      `json:"checked"`
	Published int      `json:"published"`
	Errors    []string `json:"errors"`
}

type RenderImageRequest struct {
	BackgroundURL string `json:"background_url"`
	Text          string `json:"text"`
	Signature     string `json:"signature"`
	Style         string `json:"style"`
	Canvas        string `json:"canvas"`
}

type RenderImageResponse struct {
	ImageURL string `json:"image_url"`
}
