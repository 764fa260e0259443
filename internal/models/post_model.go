package models

import "time"

type PostType string

const (
	PostTypePost  PostType = "post"
	PostTypeStory PostType = "story"
	PostTypeReels PostType = "reels"
)

func (t PostType) Valid() bool {
	switch t {
	case PostTypePost, PostTypeStory, PostTypeReels:
		return true
	}
	return false
}

// Rendition is the platform variant a publish attempt targets.
type Rendition string

const (
	RenditionPost  Rendition = "post"
	RenditionStory Rendition = "story"
)

func (r Rendition) Valid() bool {
	return r == RenditionPost || r == RenditionStory
}

type Post struct {
	ID               int64      `db:"id" json:"id"`
	AccountID        *int64     `db:"account_id" json:"account_id,omitempty"`
	Topic            string     `db:"topic" json:"topic"`
	Caption          string     `db:"caption" json:"caption"`
	Hashtags         []string   `db:"hashtags" json:"hashtags"`
	ImagePrompt      string     `db:"image_prompt" json:"image_prompt"`
	ImagePath        string     `db:"image_path" json:"image_path,omitempty"`
	ImageURL         string     `db:"image_url" json:"image_url"`
	StoryImageURL    string     `db:"story_image_url" json:"story_image_url,omitempty"`
	Type             PostType   `db:"type" json:"type"`
	Status           PostStatus `db:"status" json:"status"`
	ScheduledAtPost  *time.Time `db:"scheduled_at_post" json:"scheduled_at_post,omitempty"`
	ScheduledAtStory *time.Time `db:"scheduled_at_story" json:"scheduled_at_story,omitempty"`
	PublishedAtPost  *time.Time `db:"published_at_post" json:"published_at_post,omitempty"`
	PublishedAtStory *time.Time `db:"published_at_story" json:"published_at_story,omitempty"`
	ExternalIDPost   string     `db:"ig_post_id_post" json:"ig_post_id_post,omitempty"`
	ExternalIDStory  string     `db:"ig_post_id_story" json:"ig_post_id_story,omitempty"`
	ErrorMessage     string     `db:"error_message" json:"error_message,omitempty"`
	ErrorPost        string     `db:"error_post" json:"error_post,omitempty"`
	ErrorStory       string     `db:"error_story" json:"error_story,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// DefaultRendition is the rendition used when a publish request names none.
func (p *Post) DefaultRendition() Rendition {
	if p.Type == PostTypeStory {
		return RenditionStory
	}
	return RenditionPost
}

func (p *Post) ScheduledAt(r Rendition) *time.Time {
	if r == RenditionStory {
		return p.ScheduledAtStory
	}
	return p.ScheduledAtPost
}

func (p *Post) PublishedAt(r Rendition) *time.Time {
	if r == RenditionStory {
		return p.PublishedAtStory
	}
	return p.PublishedAtPost
}

// ImageURLFor prefers the story-specific image for the story rendition.
func (p *Post) ImageURLFor(r Rendition) string {
	if r == RenditionStory && p.StoryImageURL != "" {
		return p.StoryImageURL
	}
	return p.ImageURL
}

func (p *Post) HasPublishedRendition() bool {
	return p.PublishedAtPost != nil || p.PublishedAtStory != nil
}

// DueRenditions returns the renditions whose publish-at time is at or before now.
func (p *Post) DueRenditions(now time.Time) []Rendition {
	var due []Rendition
	for _, r := range []Rendition{RenditionPost, RenditionStory} {
		if at := p.ScheduledAt(r); at != nil && !at.After(now) {
			due = append(due, r)
		}
	}
	return due
}
