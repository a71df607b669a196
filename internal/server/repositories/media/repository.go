// Package media persists metadata of encrypted media assets.
package media

import (
	"context"

	"github.com/dmitrijs2005/miloc/internal/server/models"
)

// Repository stores MediaAsset rows. Lookups that find nothing return
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, asset *models.MediaAsset) error
	GetByID(ctx context.Context, id string) (*models.MediaAsset, error)
	GetByStoragePath(ctx context.Context, storagePath string) (*models.MediaAsset, error)
	// ListByOwner returns the owner's assets, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.MediaAsset, error)
	// Delete removes the asset only when ownerID owns it.
	Delete(ctx context.Context, id string, ownerID string) error
}
