package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"barnlabs/api/internal/ids"
	"barnlabs/api/internal/models"
	"barnlabs/api/internal/storage"
)

// Validation failures callers map to 400s.
var (
	ErrMissingFields = errors.New("missing required fields")
	ErrNoExtension   = errors.New("file name has no extension")
	ErrEmptyParts    = errors.New("part list is empty or incomplete")
)

// ErrStorage wraps object-store failures; ErrMetadata wraps index failures
// occurring after a successful merge (the rollback case).
var (
	ErrStorage  = errors.New("object store failure")
	ErrMetadata = errors.New("metadata store failure")
)

const sideEffectTimeout = 30 * time.Second

type blobStore interface {
	CreateMultipart(ctx context.Context, key string, contentType string, meta map[string]string) (string, error)
	PutPart(ctx context.Context, key string, uploadID string, partNumber int, body io.Reader, size int64) (string, error)
	CompleteMultipart(ctx context.Context, key string, uploadID string, parts []storage.Part) (string, error)
	AbortMultipart(ctx context.Context, key string, uploadID string) error
	Stat(ctx context.Context, key string) (storage.ObjectStat, error)
	Remove(ctx context.Context, key string) error
}

type assetStore interface {
	Create(ctx context.Context, asset models.Asset) error
	GetByKey(ctx context.Context, key string) (models.Asset, error)
	Delete(ctx context.Context, key string) error
}

type CreateInput struct {
	FileName string
	MimeType string
	OwnerID  string
	AsAdmin  bool
	AdminID  string
	Public   bool
}

type CreateResult struct {
	Key      string
	UploadID string
}

type CompleteInput struct {
	Key          string
	UploadID     string
	Parts        []storage.Part
	OriginalName string
	DeclaredSize int64
	OwnerID      string
	AsAdmin      bool
	AdminID      string
	Public       bool
}

// Uploader owns the multipart upload lifecycle against the object store and
// writes the final metadata row. Companion linking and downstream
// notification run after the completion response and never fail it.
type Uploader struct {
	blobs  blobStore
	assets assetStore
	quota  *QuotaEnforcer
	linker *CompanionLinker
	events eventPublisher
	log    zerolog.Logger
}

func NewUploader(blobs blobStore, assets assetStore, quota *QuotaEnforcer, linker *CompanionLinker, events eventPublisher, log zerolog.Logger) *Uploader {
	return &Uploader{
		blobs:  blobs,
		assets: assets,
		quota:  quota,
		linker: linker,
		events: events,
		log:    log,
	}
}

// Create opens a multipart session. Keys embed the category, creation time
// and a random id, so they are collision-free without coordination.
func (u *Uploader) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if input.FileName == "" || input.OwnerID == "" {
		return CreateResult{}, ErrMissingFields
	}

	ext := models.Extension(input.FileName)
	if ext == "" {
		return CreateResult{}, ErrNoExtension
	}
	category := models.CategoryForExtension(ext)

	if category == models.CategoryModel && !input.AsAdmin {
		if err := u.quota.Check(ctx, input.OwnerID); err != nil {
			return CreateResult{}, err
		}
	}

	key := BuildKey(category, ext)

	contentType := input.MimeType
	if contentType == "" {
		contentType = models.ContentTypeForKey(key)
	}

	uploadID, err := u.blobs.CreateMultipart(ctx, key, contentType, map[string]string{
		"owner-id":      input.OwnerID,
		"original-name": input.FileName,
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	u.log.Debug().
		Str("key", key).
		Str("upload_id", uploadID).
		Str("owner_id", input.OwnerID).
		Msg("multipart session opened")

	return CreateResult{Key: key, UploadID: uploadID}, nil
}

// UploadPart stores one chunk. Parts may arrive concurrently and out of
// order; the store tracks identity via the (partNumber, etag) pair.
func (u *Uploader) UploadPart(ctx context.Context, key string, uploadID string, partNumber int, body io.Reader, size int64) (string, error) {
	if key == "" || uploadID == "" || partNumber < 1 {
		return "", ErrMissingFields
	}

	etag, err := u.blobs.PutPart(ctx, key, uploadID, partNumber, body, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return etag, nil
}

// Complete merges the parts, derives the object's actual size from the
// store and inserts the metadata row. If the insert fails after the merge
// succeeded the merged object is deleted, so no orphaned blob survives a
// write failure.
func (u *Uploader) Complete(ctx context.Context, input CompleteInput) (models.Asset, error) {
	if input.Key == "" || input.UploadID == "" || input.OwnerID == "" {
		return models.Asset{}, ErrMissingFields
	}
	if len(input.Parts) == 0 {
		return models.Asset{}, ErrEmptyParts
	}
	for _, p := range input.Parts {
		if p.PartNumber < 1 || p.ETag == "" {
			return models.Asset{}, ErrEmptyParts
		}
	}

	category := categoryFromKey(input.Key)

	if category == models.CategoryModel && !input.AsAdmin {
		if err := u.quota.Check(ctx, input.OwnerID); err != nil {
			return models.Asset{}, err
		}
	}

	if _, err := u.blobs.CompleteMultipart(ctx, input.Key, input.UploadID, input.Parts); err != nil {
		return models.Asset{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	size := input.DeclaredSize
	if stat, err := u.blobs.Stat(ctx, input.Key); err == nil && stat.Size > 0 {
		size = stat.Size
	}

	displayName := input.OriginalName
	if displayName == "" {
		displayName = input.Key[strings.LastIndex(input.Key, "/")+1:]
	}

	asset := models.Asset{
		Key:           input.Key,
		OwnerID:       input.OwnerID,
		DisplayName:   displayName,
		Category:      category,
		SizeBytes:     size,
		IsPublic:      input.Public,
		IsAdminUpload: input.AsAdmin,
		CreatedAt:     time.Now().UTC(),
	}
	if input.AsAdmin && input.AdminID != "" {
		adminID := input.AdminID
		asset.UploadedByAdmin = &adminID
	}

	if err := u.assets.Create(ctx, asset); err != nil {
		if rmErr := u.blobs.Remove(ctx, input.Key); rmErr != nil {
			u.log.Error().Err(rmErr).Str("key", input.Key).Msg("rollback of merged object failed")
		}
		return models.Asset{}, fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	u.dispatchSideEffects(asset)

	u.log.Info().
		Str("key", asset.Key).
		Str("owner_id", asset.OwnerID).
		Int64("size", asset.SizeBytes).
		Msg("upload completed")

	return asset, nil
}

// Abort releases an in-progress session. No metadata row exists yet, so
// only the object store is touched.
func (u *Uploader) Abort(ctx context.Context, key string, uploadID string) error {
	if key == "" || uploadID == "" {
		return ErrMissingFields
	}
	if err := u.blobs.AbortMultipart(ctx, key, uploadID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Delete removes an asset: object first, then row. A crash between the two
// leaves a dangling row that readers already treat as not-found.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	if err := u.blobs.Remove(ctx, key); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := u.assets.Delete(ctx, key); err != nil {
		return err
	}
	return nil
}

// dispatchSideEffects runs companion linking and the downstream event off
// the request path. Failures are logged only; there is no retry.
func (u *Uploader) dispatchSideEffects(asset models.Asset) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if u.linker != nil {
			if err := u.linker.Link(ctx, asset); err != nil {
				u.log.Warn().Err(err).Str("key", asset.Key).Msg("companion linking failed")
			}
		}
		if u.events != nil {
			if err := u.events.UploadCompleted(ctx, asset); err != nil {
				u.log.Warn().Err(err).Str("key", asset.Key).Msg("upload event publish failed")
			}
		}
	}()
}

// BuildKey derives the immutable object key for a new asset.
func BuildKey(category models.AssetCategory, ext string) string {
	return fmt.Sprintf("%s/%d_%s.%s", category, time.Now().UnixMilli(), ids.New(), ext)
}

func categoryFromKey(key string) models.AssetCategory {
	prefix, _, found := strings.Cut(key, "/")
	if !found {
		return models.CategoryDocument
	}
	switch models.AssetCategory(prefix) {
	case models.CategoryModel, models.CategoryImage, models.CategoryVideo, models.CategoryDocument:
		return models.AssetCategory(prefix)
	}
	return models.CategoryDocument
}
