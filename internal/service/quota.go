package service

import (
	"context"
	"fmt"

	"barnlabs/api/internal/models"
)

// QuotaError carries the numbers a caller needs to act on a rejected upload.
type QuotaError struct {
	Current int
	Limit   int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("model quota reached: %d of %d", e.Current, e.Limit)
}

type modelCounter interface {
	CountOwnerModels(ctx context.Context, ownerID string) (int, error)
}

type userGetter interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// QuotaEnforcer compares an owner's non-admin model count against their
// ceiling. Admin uploads bypass the check entirely and admin-shared public
// assets are excluded by the count query itself.
type QuotaEnforcer struct {
	assets       modelCounter
	users        userGetter
	defaultLimit int
}

func NewQuotaEnforcer(assets modelCounter, users userGetter, defaultLimit int) *QuotaEnforcer {
	return &QuotaEnforcer{
		assets:       assets,
		users:        users,
		defaultLimit: defaultLimit,
	}
}

func (q *QuotaEnforcer) Check(ctx context.Context, ownerID string) error {
	user, err := q.users.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", ownerID, err)
	}
	if user.IsAdmin {
		return nil
	}

	current, limit, err := q.usage(ctx, user)
	if err != nil {
		return err
	}
	if current >= limit {
		return &QuotaError{Current: current, Limit: limit}
	}
	return nil
}

func (q *QuotaEnforcer) Usage(ctx context.Context, ownerID string) (current int, limit int, err error) {
	user, err := q.users.GetByID(ctx, ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("load user %s: %w", ownerID, err)
	}
	return q.usage(ctx, user)
}

func (q *QuotaEnforcer) usage(ctx context.Context, user models.User) (int, int, error) {
	count, err := q.assets.CountOwnerModels(ctx, user.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("count models: %w", err)
	}

	limit := user.MaxModels
	if limit <= 0 {
		limit = q.defaultLimit
	}
	return count, limit, nil
}
