// Package users persists accounts and their media keys.
package users

import (
	"context"

	"github.com/dmitrijs2005/miloc/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID and CreatedAt. A taken username or
	// email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetEncryptionKey returns the stored key text, "" when the user has none.
	GetEncryptionKey(ctx context.Context, id string) (string, error)

	// StoreEncryptionKeyIfAbsent sets the key only if none is stored yet and
	// returns the value that is stored afterwards, in a single statement.
	StoreEncryptionKeyIfAbsent(ctx context.Context, id string, key string) (string, error)

	// ListWithoutKey returns the ids of users with no key, oldest first.
	ListWithoutKey(ctx context.Context, limit int) ([]string, error)
}
