package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/cryptox"
	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/dmitrijs2005/miloc/internal/server/keyvault"
	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/miloc/internal/server/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrAssetUnreadable means an asset exists and is owned by the caller but
// could not be turned back into plaintext.
var ErrAssetUnreadable = errors.New("unable to retrieve file")

// KeyProvider returns a user's media key. GetOrCreateKey creates a missing
// key, GetKey only reads.
type KeyProvider interface {
	GetOrCreateKey(ctx context.Context, userID string) ([]byte, error)
	GetKey(ctx context.Context, userID string) ([]byte, error)
}

// MediaService stores media encrypted under the owner's key and hands
// plaintext back only to the owner.
type MediaService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	store          storage.BlobStore
	keys           KeyProvider
	codec          *cryptox.Codec
	maxUploadBytes int64
	logger         logging.Logger
	now            func() time.Time
}

func NewMediaService(db *sql.DB, m repomanager.RepositoryManager, store storage.BlobStore, keys KeyProvider,
	codec *cryptox.Codec, maxUploadBytes int64, logger logging.Logger) *MediaService {
	return &MediaService{
		db:             db,
		repomanager:    m,
		store:          store,
		keys:           keys,
		codec:          codec,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("module", "media"),
		now:            time.Now,
	}
}

var kindDirs = map[models.ContentKind]string{
	models.ContentKindImage: "progress_images",
	models.ContentKindVideo: "progress_videos",
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/heic": ".heic",
	"image/heif": ".heif",
	"image/avif": ".avif",

	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/x-msvideo": ".avi",
	"video/3gpp":      ".3gp",
}

// StoragePath builds the relative path of a new asset.
func StoragePath(kind models.ContentKind, ownerID, id, contentType string, at time.Time) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s/%04d/%02d/%s%s", kindDirs[kind], ownerID, at.Year(), int(at.Month()), id, ext)
}

// ProtectedURL is the only URL under which an asset is served.
func ProtectedURL(storagePath string) string {
	return "/media/protected/" + storagePath
}

// sniffContentType is a seam for tests. It recognizes the ISO-BMFF brands
// phone cameras write (HEIC, QuickTime) as well as the usual web formats.
var sniffContentType = func(data []byte) string {
	return mimetype.Detect(data).String()
}

// Upload resolves, validates and encrypts the payload, stores the ciphertext
// and records the asset.
func (s *MediaService) Upload(ctx context.Context, ownerID string, req UploadRequest) (*models.MediaAsset, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown content kind %q", common.ErrorValidation, req.Kind)
	}
	if req.Payload == nil {
		return nil, fmt.Errorf("%w: no file", common.ErrorValidation)
	}

	data, err := req.Payload.resolve()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrorValidation)
	}
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", common.ErrorValidation, s.maxUploadBytes)
	}

	contentType := sniffContentType(data)
	if !strings.HasPrefix(contentType, string(req.Kind)+"/") {
		return nil, fmt.Errorf("%w: file is not a valid %s", common.ErrorValidation, req.Kind)
	}
	contentType, _, _ = strings.Cut(contentType, ";")

	key, err := s.keys.GetOrCreateKey(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("owner key: %w", err)
	}
	defer common.WipeByteArray(key)

	blob, err := s.codec.Encrypt(data, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	id := uuid.NewString()
	asset := &models.MediaAsset{
		ID:          id,
		OwnerID:     ownerID,
		StoragePath: StoragePath(req.Kind, ownerID, id, contentType, s.now().UTC()),
		ContentKind: req.Kind,
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	if err := s.store.Put(ctx, asset.StoragePath, blob); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	if err := s.repomanager.Media(s.db).Create(ctx, asset); err != nil {
		if delErr := s.store.Delete(ctx, asset.StoragePath); delErr != nil {
			s.logger.Warn(ctx, "orphaned blob", "storage_path", asset.StoragePath, "error", delErr)
		}
		return nil, fmt.Errorf("record asset: %w", err)
	}

	s.logger.Info(ctx, "asset uploaded", "asset_id", asset.ID, "owner_id", ownerID, "kind", req.Kind, "size", asset.Size)
	return asset, nil
}

// Open authorizes requesterID for the asset at storagePath and returns its
// plaintext. Missing and foreign assets both yield common.ErrorNotFound.
// Decryption problems yield ErrAssetUnreadable wrapping the cause.
func (s *MediaService) Open(ctx context.Context, requesterID, storagePath string) (*models.MediaAsset, []byte, error) {
	if !storage.ValidPath(storagePath) {
		return nil, nil, common.ErrorNotFound
	}

	asset, err := s.repomanager.Media(s.db).GetByStoragePath(ctx, storagePath)
	if err != nil {
		return nil, nil, err
	}

	if asset.OwnerID != requesterID {
		s.logger.Warn(ctx, "asset requested by non-owner", "asset_id", asset.ID, "requester_id", requesterID)
		return nil, nil, common.ErrorNotFound
	}

	plaintext, err := s.decrypt(ctx, asset, s.keys.GetOrCreateKey)
	if err != nil {
		s.logger.Error(ctx, "unable to decrypt asset",
			"asset_id", asset.ID,
			"storage_path", asset.StoragePath,
			"owner_id", asset.OwnerID,
			"failure", FailureClass(err),
			"error", err,
		)
		return nil, nil, err
	}

	return asset, plaintext, nil
}

type keyLookup func(ctx context.Context, userID string) ([]byte, error)

func (s *MediaService) decrypt(ctx context.Context, asset *models.MediaAsset, lookup keyLookup) ([]byte, error) {
	key, err := lookup(ctx, asset.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssetUnreadable, err)
	}
	defer common.WipeByteArray(key)

	blob, err := s.store.Get(ctx, asset.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: blob: %w", ErrAssetUnreadable, err)
	}

	plaintext, err := s.codec.Decrypt(blob, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssetUnreadable, err)
	}
	return plaintext, nil
}

// FailureClass names the reason an asset could not be read, for logs and
// operator output. It never includes key material.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cryptox.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, cryptox.ErrInvalidToken):
		return "authentication_failed"
	case errors.Is(err, cryptox.ErrCorruptData):
		return "corrupt_data"
	case errors.Is(err, keyvault.ErrNoKey):
		return "no_key"
	case errors.Is(err, common.ErrorNotFound):
		return "blob_missing"
	default:
		return "storage"
	}
}

// List returns the owner's assets, newest first.
func (s *MediaService) List(ctx context.Context, ownerID string) ([]*models.MediaAsset, error) {
	assets, err := s.repomanager.Media(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// Delete removes an owned asset and its blob. Foreign and missing assets
// both yield common.ErrorNotFound.
func (s *MediaService) Delete(ctx context.Context, ownerID, id string) error {
	repo := s.repomanager.Media(s.db)

	asset, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if asset.OwnerID != ownerID {
		return common.ErrorNotFound
	}

	if err := repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, asset.StoragePath); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "orphaned blob", "storage_path", asset.StoragePath, "error", err)
	}

	s.logger.Info(ctx, "asset deleted", "asset_id", id, "owner_id", ownerID)
	return nil
}

// VerifyResult is the outcome of decrypting one asset in memory.
type VerifyResult struct {
	Asset *models.MediaAsset
	Err   error
}

// Verify decrypts every asset of ownerID in memory and reports per-asset
// results. Plaintext is discarded immediately. It never creates a key; an
// unknown user yields common.ErrorNotFound.
func (s *MediaService) Verify(ctx context.Context, ownerID string) ([]VerifyResult, error) {
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}

	assets, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, 0, len(assets))
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		plaintext, err := s.decrypt(ctx, a, s.keys.GetKey)
		common.WipeByteArray(plaintext)
		results = append(results, VerifyResult{Asset: a, Err: err})
	}
	return results, nil
}
