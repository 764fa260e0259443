package service

import (
	"time"
)

// longLivedTokenTTL is the lifetime Instagram grants a refreshed token.
const longLivedTokenTTL = 60 * 24 * time.Hour

// GetExpiresAt turns an expires_in value in seconds into an absolute time.
// A missing value falls back to the long-lived token lifetime.
func GetExpiresAt(expiresIn int) time.Time {
	if expiresIn <= 0 {
		return time.Now().Add(longLivedTokenTTL)
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}
