package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"barnlabs/api/internal/models"
	"barnlabs/api/internal/repository"
)

type companionStore interface {
	FindByDisplayNames(ctx context.Context, ownerID string, names []string, excludeKey string) (models.Asset, error)
	SetCompanion(ctx context.Context, key string, companionKey string) error
}

type eventPublisher interface {
	UploadCompleted(ctx context.Context, asset models.Asset) error
	CompanionLinked(ctx context.Context, key string, companionKey string) error
	SuggestCompanion(ctx context.Context, asset models.Asset, expected []string) error
}

// CompanionLinker cross-links a just-completed model asset with the same
// owner's alternate encoding of the same scene, matched by base file name.
// The whole step is advisory: it runs after the upload response and its
// errors are logged, never surfaced to the uploader.
type CompanionLinker struct {
	assets companionStore
	events eventPublisher
	log    zerolog.Logger
}

func NewCompanionLinker(assets companionStore, events eventPublisher, log zerolog.Logger) *CompanionLinker {
	return &CompanionLinker{
		assets: assets,
		events: events,
		log:    log,
	}
}

// Link finds the sibling encoding and sets companion_key on both rows.
// With no sibling present it publishes a suggestion event and stops.
func (l *CompanionLinker) Link(ctx context.Context, asset models.Asset) error {
	if asset.Category != models.CategoryModel {
		return nil
	}

	names := models.CompanionNames(asset.DisplayName)
	if len(names) == 0 {
		return nil
	}

	sibling, err := l.assets.FindByDisplayNames(ctx, asset.OwnerID, names, asset.Key)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			if err := l.events.SuggestCompanion(ctx, asset, names); err != nil {
				l.log.Warn().Err(err).Str("key", asset.Key).Msg("companion suggestion publish failed")
			}
			return nil
		}
		return fmt.Errorf("find sibling: %w", err)
	}

	if err := l.assets.SetCompanion(ctx, asset.Key, sibling.Key); err != nil {
		return fmt.Errorf("link %s -> %s: %w", asset.Key, sibling.Key, err)
	}
	if err := l.assets.SetCompanion(ctx, sibling.Key, asset.Key); err != nil {
		return fmt.Errorf("link %s -> %s: %w", sibling.Key, asset.Key, err)
	}

	if err := l.events.CompanionLinked(ctx, asset.Key, sibling.Key); err != nil {
		l.log.Warn().Err(err).Str("key", asset.Key).Msg("companion linked publish failed")
	}

	l.log.Info().
		Str("key", asset.Key).
		Str("companion", sibling.Key).
		Msg("companion assets linked")
	return nil
}
