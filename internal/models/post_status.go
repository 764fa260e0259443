package models

import (
	"errors"
	"fmt"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusApproved  PostStatus = "approved"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

var ErrInvalidStatus = errors.New("invalid post status")

func ParsePostStatus(s string) (PostStatus, error) {
	st := PostStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusApproved, PostStatusPublished, PostStatusFailed:
		return true
	}
	return false
}

// transitions lists every allowed status change. Published -> Published is a
// republish, Published -> Failed is never stored while a rendition is live.
var transitions = map[PostStatus][]PostStatus{
	PostStatusDraft:     {PostStatusApproved, PostStatusFailed},
	PostStatusApproved:  {PostStatusApproved, PostStatusPublished, PostStatusFailed},
	PostStatusPublished: {PostStatusPublished, PostStatusFailed},
	PostStatusFailed:    {PostStatusApproved},
}

func CanTransition(from, to PostStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanApprove reports whether an operator may approve a post in status s.
func CanApprove(s PostStatus) bool {
	return s != PostStatusPublished && CanTransition(s, PostStatusApproved)
}

// CanAttemptPublish reports whether a publish attempt may start. Published
// items are only accepted on the republish path.
func CanAttemptPublish(s PostStatus, republish bool) bool {
	if s == PostStatusApproved {
		return true
	}
	return republish && s == PostStatusPublished
}

// FailureStatus is the status a post takes after a failed attempt: a post
// with any live rendition stays published.
func FailureStatus(p *Post) PostStatus {
	if p.HasPublishedRendition() {
		return PostStatusPublished
	}
	return PostStatusFailed
}
