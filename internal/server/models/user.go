// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. EncryptionKey holds the text form of the user's
// media key and is empty for accounts created before keys existed.
type User struct {
	ID            string
	UserName      string
	Email         string
	PasswordHash  string
	EncryptionKey string
	CreatedAt     time.Time
}
