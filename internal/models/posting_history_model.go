package models

import "time"

// PostingHistory is one publish attempt for one rendition.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	AccountID    *int64    `db:"account_id" json:"account_id,omitempty"`
	Rendition    Rendition `db:"rendition" json:"rendition"`
	ExternalID   string    `db:"external_id" json:"external_id,omitempty"`
	Attempts     int       `db:"attempts" json:"attempts"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
