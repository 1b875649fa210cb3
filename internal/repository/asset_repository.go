package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"barnlabs/api/internal/models"
)

var ErrAssetNotFound = errors.New("asset not found")

const assetColumns = `key, owner_id, display_name, category, size_bytes,
	       is_public, is_admin_upload, uploaded_by_admin, companion_key, created_at`

type AssetRepository struct {
	pool *pgxpool.Pool
}

func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

func (r *AssetRepository) Create(ctx context.Context, asset models.Asset) error {
	const query = `
		INSERT INTO assets (
			key, owner_id, display_name, category, size_bytes,
			is_public, is_admin_upload, uploaded_by_admin, companion_key, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		asset.Key,
		asset.OwnerID,
		asset.DisplayName,
		asset.Category,
		asset.SizeBytes,
		asset.IsPublic,
		asset.IsAdminUpload,
		asset.UploadedByAdmin,
		asset.CompanionKey,
	)
	return err
}

func (r *AssetRepository) GetByKey(ctx context.Context, key string) (models.Asset, error) {
	const query = `
		SELECT ` + assetColumns + `
		FROM assets WHERE key = $1
	`

	row := r.pool.QueryRow(ctx, query, key)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, ErrAssetNotFound
		}
		return models.Asset{}, err
	}
	return asset, nil
}

func (r *AssetRepository) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM assets WHERE key = $1`

	cmd, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *AssetRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Asset, error) {
	const query = `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssets(rows)
}

func (r *AssetRepository) List(ctx context.Context, limit, offset int) ([]models.Asset, error) {
	const query = `
		SELECT ` + assetColumns + `
		FROM assets
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssets(rows)
}

// CountOwnerModels counts the model assets that occupy an owner's quota.
// Admin-shared content (is_admin_upload) never counts toward a ceiling.
func (r *AssetRepository) CountOwnerModels(ctx context.Context, ownerID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM assets
		WHERE owner_id = $1 AND category = 'model' AND is_admin_upload = FALSE
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FindByDisplayNames returns the newest of an owner's model assets whose
// display name matches one of the given candidates, excluding one key.
func (r *AssetRepository) FindByDisplayNames(ctx context.Context, ownerID string, names []string, excludeKey string) (models.Asset, error) {
	const query = `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE owner_id = $1 AND category = 'model' AND display_name = ANY($2) AND key <> $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, ownerID, names, excludeKey)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, ErrAssetNotFound
		}
		return models.Asset{}, err
	}
	return asset, nil
}

func (r *AssetRepository) SetCompanion(ctx context.Context, key string, companionKey string) error {
	const query = `UPDATE assets SET companion_key = $2 WHERE key = $1`

	cmd, err := r.pool.Exec(ctx, query, key, companionKey)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *AssetRepository) SetPublic(ctx context.Context, key string, public bool) error {
	const query = `UPDATE assets SET is_public = $2 WHERE key = $1`

	cmd, err := r.pool.Exec(ctx, query, key, public)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func scanAsset(row pgx.Row) (models.Asset, error) {
	var asset models.Asset
	err := row.Scan(
		&asset.Key,
		&asset.OwnerID,
		&asset.DisplayName,
		&asset.Category,
		&asset.SizeBytes,
		&asset.IsPublic,
		&asset.IsAdminUpload,
		&asset.UploadedByAdmin,
		&asset.CompanionKey,
		&asset.CreatedAt,
	)
	return asset, err
}

func scanAssets(rows pgx.Rows) ([]models.Asset, error) {
	var assets []models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}
