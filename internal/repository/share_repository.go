package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"barnlabs/api/internal/models"
)

var ErrShareNotFound = errors.New("share not found")

type ShareRepository struct {
	pool *pgxpool.Pool
}

func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

func (r *ShareRepository) Create(ctx context.Context, share models.Share) error {
	const query = `
		INSERT INTO shares (
			id, owner_id, content_snapshot, created_at, expires_at
		) VALUES (
			$1, $2, $3, NOW(), $4
		)
	`

	_, err := r.pool.Exec(ctx, query,
		share.ID,
		share.OwnerID,
		share.ContentSnapshot,
		share.ExpiresAt,
	)
	return err
}

func (r *ShareRepository) GetByID(ctx context.Context, id string) (models.Share, error) {
	const query = `
		SELECT id, owner_id, content_snapshot, created_at, expires_at
		FROM shares WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var share models.Share
	if err := row.Scan(
		&share.ID,
		&share.OwnerID,
		&share.ContentSnapshot,
		&share.CreatedAt,
		&share.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Share{}, ErrShareNotFound
		}
		return models.Share{}, err
	}
	return share, nil
}

func (r *ShareRepository) Delete(ctx context.Context, id string, ownerID string) error {
	const query = `DELETE FROM shares WHERE id = $1 AND owner_id = $2`

	cmd, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrShareNotFound
	}
	return nil
}

func (r *ShareRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM shares WHERE expires_at IS NOT NULL AND expires_at <= NOW()`

	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
