// Package keyvault hands out the per-user media key, creating and persisting
// it on first use. Key material never leaves this package except to the
// caller that encrypts or decrypts with it; it is never logged.
package keyvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/cryptox"
	"github.com/dmitrijs2005/miloc/internal/logging"
)

var (
	// ErrKeyPersistence wraps store failures while reading or saving a key.
	ErrKeyPersistence = errors.New("key persistence failed")

	// ErrNoKey is returned by GetKey for a user that has no key yet.
	ErrNoKey = errors.New("user has no encryption key")
)

// KeyStore is the subset of the users repository the vault needs.
type KeyStore interface {
	GetEncryptionKey(ctx context.Context, userID string) (string, error)
	StoreEncryptionKeyIfAbsent(ctx context.Context, userID string, key string) (string, error)
}

type Vault struct {
	store  KeyStore
	logger logging.Logger
}

func New(store KeyStore, logger logging.Logger) *Vault {
	return &Vault{store: store, logger: logger.With("module", "keyvault")}
}

// generateKey is a seam for tests.
var generateKey = cryptox.GenerateKey

// NewKeyText returns the stored form of a fresh key, used when a user row is
// created.
func NewKeyText() (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", err
	}
	return cryptox.EncodeKey(key), nil
}

// GetKey returns the user's stored key without creating one.
func (v *Vault) GetKey(ctx context.Context, userID string) ([]byte, error) {
	text, err := v.read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrNoKey
	}
	return v.decode(ctx, userID, text)
}

// GetOrCreateKey returns the user's key. A user without one gets a new key;
// when two callers race, the first write sticks and both return it.
func (v *Vault) GetOrCreateKey(ctx context.Context, userID string) ([]byte, error) {
	text, err := v.read(ctx, userID)
	if err != nil {
		return nil, err
	}

	if text == "" {
		if text, err = v.create(ctx, userID); err != nil {
			return nil, err
		}
	}

	return v.decode(ctx, userID, text)
}

func (v *Vault) read(ctx context.Context, userID string) (string, error) {
	text, err := v.store.GetEncryptionKey(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrKeyPersistence, err)
	}
	return text, nil
}

func (v *Vault) decode(ctx context.Context, userID, text string) ([]byte, error) {
	key, err := cryptox.DecodeKey(text)
	if err != nil {
		v.logger.Error(ctx, "stored key is not usable", "user_id", userID)
		return nil, err
	}
	return key, nil
}

func (v *Vault) create(ctx context.Context, userID string) (string, error) {
	fresh, err := NewKeyText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyPersistence, err)
	}

	stored, err := v.store.StoreEncryptionKeyIfAbsent(ctx, userID, fresh)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrKeyPersistence, err)
	}

	if stored == fresh {
		v.logger.Info(ctx, "generated encryption key", "user_id", userID)
	}
	return stored, nil
}
