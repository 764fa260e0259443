package models

import (
	"time"
)

type SocialAccount struct {
	ID             int64      `db:"id" json:"id"`
	IGUserID       string     `db:"ig_user_id" json:"ig_user_id"`
	Username       string     `db:"username" json:"username,omitempty"`
	AccessToken    string     `db:"access_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	Niche          string     `db:"niche" json:"niche"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
