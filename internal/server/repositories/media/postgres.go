package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/dbx"
	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const selectColumns = `id, owner_id, storage_path, content_kind, content_type, size, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(s scanner) (*models.MediaAsset, error) {
	a := &models.MediaAsset{}
	var kind string
	if err := s.Scan(&a.ID, &a.OwnerID, &a.StoragePath, &kind, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ContentKind = models.ContentKind(kind)
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	query := `
		INSERT INTO media_assets (id, owner_id, storage_path, content_kind, content_type, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		asset.ID, asset.OwnerID, asset.StoragePath, string(asset.ContentKind), asset.ContentType, asset.Size,
	).Scan(&asset.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, column string, value string) (*models.MediaAsset, error) {
	query := `SELECT ` + selectColumns + ` FROM media_assets WHERE ` + column + ` = $1`

	a, err := scanAsset(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.MediaAsset, error) {
	return r.getOne(ctx, "id", id)
}

func (r *PostgresRepository) GetByStoragePath(ctx context.Context, storagePath string) (*models.MediaAsset, error) {
	return r.getOne(ctx, "storage_path", storagePath)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.MediaAsset, error) {
	query := `SELECT ` + selectColumns + ` FROM media_assets WHERE owner_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	assets := []*models.MediaAsset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return assets, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string, ownerID string) error {
	query := `DELETE FROM media_assets WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
