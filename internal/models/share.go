package models

import "time"

// Share is a public, possibly time-limited read capability over a snapshot
// of an owner's dashboard content.
type Share struct {
	ID              string
	OwnerID         string
	ContentSnapshot string
	CreatedAt       time.Time
	ExpiresAt       *time.Time
}

func (s Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
