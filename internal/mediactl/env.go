package mediactl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/miloc/internal/cryptox"
	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/dmitrijs2005/miloc/internal/server/config"
	"github.com/dmitrijs2005/miloc/internal/server/keyvault"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/dmitrijs2005/miloc/internal/server/storage"
)

// Env is what the commands operate on.
type Env struct {
	DB     *sql.DB
	Repos  repomanager.RepositoryManager
	Vault  *keyvault.Vault
	Media  *services.MediaService
	Logger logging.Logger
}

// Opener builds an Env from the resolved config.
type Opener func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Env, error)

func NewEnv(db *sql.DB, repos repomanager.RepositoryManager, store storage.BlobStore, codec *cryptox.Codec,
	cfg *config.Config, logger logging.Logger) *Env {
	vault := keyvault.New(repos.Users(db), logger)
	return &Env{
		DB:     db,
		Repos:  repos,
		Vault:  vault,
		Media:  services.NewMediaService(db, repos, store, vault, codec, cfg.MaxUploadBytes, logger),
		Logger: logger,
	}
}

// OpenEnv connects to the configured database and blob store.
func OpenEnv(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Env, error) {
	codec, err := cryptox.NewCodec(cryptox.Version(cfg.CipherVersion))
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	return NewEnv(db, repomanager.NewPostgresRepositoryManager(), store, codec, cfg, logger), nil
}

func (e *Env) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}
