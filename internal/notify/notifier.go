package notify

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"barnlabs/api/internal/models"
)

const Stream = "assets:events"

// Notifier publishes post-upload events to the downstream worker stream.
// Delivery is best-effort: there is no retry and no dead-letter, and every
// caller is expected to log and swallow failures.
type Notifier struct {
	client *redis.Client
	log    zerolog.Logger
}

func New(client *redis.Client, log zerolog.Logger) *Notifier {
	return &Notifier{
		client: client,
		log:    log,
	}
}

func (n *Notifier) UploadCompleted(ctx context.Context, asset models.Asset) error {
	return n.publish(ctx, map[string]any{
		"type":     "asset_uploaded",
		"key":      asset.Key,
		"owner":    asset.OwnerID,
		"category": string(asset.Category),
		"size":     asset.SizeBytes,
	})
}

func (n *Notifier) CompanionLinked(ctx context.Context, key string, companionKey string) error {
	return n.publish(ctx, map[string]any{
		"type":      "companion_linked",
		"key":       key,
		"companion": companionKey,
	})
}

// SuggestCompanion signals that a model upload has no sibling encoding yet
// and names the upload that would complete the pair.
func (n *Notifier) SuggestCompanion(ctx context.Context, asset models.Asset, expected []string) error {
	return n.publish(ctx, map[string]any{
		"type":     "companion_suggested",
		"key":      asset.Key,
		"owner":    asset.OwnerID,
		"expected": strings.Join(expected, ","),
	})
}

func (n *Notifier) publish(ctx context.Context, values map[string]any) error {
	if n.client == nil {
		return nil
	}
	_, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: values,
	}).Result()
	return err
}
