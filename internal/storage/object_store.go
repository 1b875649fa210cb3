package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"barnlabs/api/internal/config"
)

// Part identifies one uploaded chunk of a multipart session. The store is
// the source of truth for part identity via the (PartNumber, ETag) pair.
type Part struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// ObjectStat is the subset of object metadata readers need.
type ObjectStat struct {
	Size        int64
	ETag        string
	ContentType string
}

type ObjectStore struct {
	core *minio.Core
	cfg  config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		core: core,
		cfg:  cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.core.Client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.core.Client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

func (s *ObjectStore) CreateMultipart(ctx context.Context, key string, contentType string, meta map[string]string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.cfg.Bucket, key, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return "", fmt.Errorf("new multipart upload: %w", err)
	}
	return uploadID, nil
}

func (s *ObjectStore) PutPart(ctx context.Context, key string, uploadID string, partNumber int, body io.Reader, size int64) (string, error) {
	part, err := s.core.PutObjectPart(ctx, s.cfg.Bucket, key, uploadID, partNumber, body, size, minio.PutObjectPartOptions{})
	if err != nil {
		return "", fmt.Errorf("put part %d: %w", partNumber, err)
	}
	return part.ETag, nil
}

func (s *ObjectStore) CompleteMultipart(ctx context.Context, key string, uploadID string, parts []Part) (string, error) {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: p.PartNumber,
			ETag:       p.ETag,
		})
	}

	info, err := s.core.CompleteMultipartUpload(ctx, s.cfg.Bucket, key, uploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("complete multipart upload: %w", err)
	}
	return info.ETag, nil
}

func (s *ObjectStore) AbortMultipart(ctx context.Context, key string, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.cfg.Bucket, key, uploadID); err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

func (s *ObjectStore) Stat(ctx context.Context, key string) (ObjectStat, error) {
	info, err := s.core.Client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, err
	}
	return ObjectStat{
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
	}, nil
}

func (s *ObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectStat, error) {
	stat, err := s.Stat(ctx, key)
	if err != nil {
		return nil, ObjectStat{}, err
	}

	obj, err := s.core.Client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectStat{}, fmt.Errorf("get object: %w", err)
	}
	return obj, stat, nil
}

func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	return s.core.Client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{})
}

// SweepStaleUploads aborts incomplete multipart sessions older than the
// retention window. Abandoned sessions hold part data the store will not
// reclaim on its own.
func (s *ObjectStore) SweepStaleUploads(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	swept := 0

	for upload := range s.core.Client.ListIncompleteUploads(ctx, s.cfg.Bucket, "", true) {
		if upload.Err != nil {
			return swept, fmt.Errorf("list incomplete uploads: %w", upload.Err)
		}
		if !upload.Initiated.Before(cutoff) {
			continue
		}
		if err := s.core.Client.RemoveIncompleteUpload(ctx, s.cfg.Bucket, upload.Key); err != nil {
			return swept, fmt.Errorf("remove incomplete upload %s: %w", upload.Key, err)
		}
		swept++
	}
	return swept, nil
}

// IsNotFound reports whether err is the store's missing-object response.
// A dangling metadata row behind a deleted object must read as not-found,
// not as a storage failure.
func IsNotFound(err error) bool {
	return minio.ToErrorResponse(err).StatusCode == http.StatusNotFound
}
