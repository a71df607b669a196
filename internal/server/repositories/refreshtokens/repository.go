// Package refreshtokens stores the opaque refresh tokens issued at login.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/miloc/internal/server/models"
)

// Repository issues, looks up and revokes refresh tokens.
type Repository interface {
	// Create stores token for userID, valid for validity from now.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns the row for token or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete revokes token. It returns common.ErrorNotFound when no row was
	// removed, which lets a refresh detect that a concurrent refresh already
	// consumed the same token.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
