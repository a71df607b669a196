package models

import "time"

// RefreshToken is one issued refresh token. Rotation deletes the row, so a
// token is usable at most once.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}
