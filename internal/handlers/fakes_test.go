package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"barnlabs/api/internal/config"
	"barnlabs/api/internal/httperr"
	"barnlabs/api/internal/models"
	"barnlabs/api/internal/notify"
	"barnlabs/api/internal/repository"
	"barnlabs/api/internal/security"
	"barnlabs/api/internal/service"
	"barnlabs/api/internal/storage"
)

const (
	testSecret    = "handler-test-secret"
	testRequestID = "req-handler-test"
)

func notFoundErr() error {
	return minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
}

type fakeSession struct {
	contentType string
	parts       map[int][]byte
	etags       map[int]string
}

// fakeStore is an in-memory object store covering the multipart lifecycle
// and the proxy read path.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*fakeSession
	objects  map[string][]byte
	types    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*fakeSession),
		objects:  make(map[string][]byte),
		types:    make(map[string]string),
	}
}

func sessionKey(key, uploadID string) string {
	return key + "|" + uploadID
}

func (f *fakeStore) CreateMultipart(_ context.Context, key string, contentType string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	uploadID := fmt.Sprintf("upload-%d", f.seq)
	f.sessions[sessionKey(key, uploadID)] = &fakeSession{
		contentType: contentType,
		parts:       make(map[int][]byte),
		etags:       make(map[int]string),
	}
	return uploadID, nil
}

func (f *fakeStore) PutPart(_ context.Context, key string, uploadID string, partNumber int, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionKey(key, uploadID)]
	if !ok {
		return "", fmt.Errorf("unknown upload session %s", uploadID)
	}
	etag := fmt.Sprintf("etag-%d-%d", partNumber, len(data))
	sess.parts[partNumber] = data
	sess.etags[partNumber] = etag
	return etag, nil
}

func (f *fakeStore) CompleteMultipart(_ context.Context, key string, uploadID string, parts []storage.Part) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionKey(key, uploadID)]
	if !ok {
		return "", fmt.Errorf("unknown upload session %s", uploadID)
	}

	sorted := make([]storage.Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var merged []byte
	for _, p := range sorted {
		if sess.etags[p.PartNumber] != p.ETag {
			return "", fmt.Errorf("etag mismatch for part %d", p.PartNumber)
		}
		merged = append(merged, sess.parts[p.PartNumber]...)
	}

	f.objects[key] = merged
	f.types[key] = sess.contentType
	delete(f.sessions, sessionKey(key, uploadID))
	return "merged-etag", nil
}

func (f *fakeStore) AbortMultipart(_ context.Context, key string, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionKey(key, uploadID))
	return nil
}

func (f *fakeStore) Stat(_ context.Context, key string) (storage.ObjectStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectStat{}, notFoundErr()
	}
	return storage.ObjectStat{Size: int64(len(data)), ETag: "merged-etag", ContentType: f.types[key]}, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectStat, error) {
	stat, err := f.Stat(ctx, key)
	if err != nil {
		return nil, storage.ObjectStat{}, err
	}
	f.mu.Lock()
	data := f.objects[key]
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(data)), stat, nil
}

func (f *fakeStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	delete(f.types, key)
	return nil
}

// fakeAssets backs both the metadata writes of the upload flow and the
// gateway reads of the list and proxy routes.
type fakeAssets struct {
	mu   sync.Mutex
	rows map[string]models.Asset
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{rows: make(map[string]models.Asset)}
}

func (f *fakeAssets) Create(_ context.Context, asset models.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[asset.Key] = asset
	return nil
}

func (f *fakeAssets) GetByKey(_ context.Context, key string) (models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asset, ok := f.rows[key]
	if !ok {
		return models.Asset{}, repository.ErrAssetNotFound
	}
	return asset, nil
}

func (f *fakeAssets) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[key]; !ok {
		return repository.ErrAssetNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeAssets) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Asset
	for _, a := range f.rows {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return page(out, limit, offset), nil
}

func (f *fakeAssets) List(_ context.Context, limit, offset int) ([]models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Asset, 0, len(f.rows))
	for _, a := range f.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return page(out, limit, offset), nil
}

func page(assets []models.Asset, limit, offset int) []models.Asset {
	if offset >= len(assets) {
		return nil
	}
	assets = assets[offset:]
	if limit < len(assets) {
		assets = assets[:limit]
	}
	return assets
}

func (f *fakeAssets) CountOwnerModels(_ context.Context, ownerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.rows {
		if a.OwnerID == ownerID && a.Category == models.CategoryModel && !a.IsAdminUpload {
			count++
		}
	}
	return count, nil
}

func (f *fakeAssets) FindByDisplayNames(_ context.Context, ownerID string, names []string, excludeKey string) (models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.OwnerID != ownerID || a.Key == excludeKey || a.Category != models.CategoryModel {
			continue
		}
		for _, name := range names {
			if a.DisplayName == name {
				return a, nil
			}
		}
	}
	return models.Asset{}, repository.ErrAssetNotFound
}

func (f *fakeAssets) SetCompanion(_ context.Context, key string, companionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	asset, ok := f.rows[key]
	if !ok {
		return repository.ErrAssetNotFound
	}
	asset.CompanionKey = &companionKey
	f.rows[key] = asset
	return nil
}

type fakeShares struct {
	mu     sync.Mutex
	shares map[string]models.Share
}

func newFakeShares() *fakeShares {
	return &fakeShares{shares: make(map[string]models.Share)}
}

func (f *fakeShares) Create(_ context.Context, share models.Share) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shares[share.ID] = share
	return nil
}

func (f *fakeShares) GetByID(_ context.Context, id string) (models.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[id]
	if !ok {
		return models.Share{}, repository.ErrShareNotFound
	}
	return share, nil
}

func (f *fakeShares) Delete(_ context.Context, id string, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[id]
	if !ok || share.OwnerID != ownerID {
		return repository.ErrShareNotFound
	}
	delete(f.shares, id)
	return nil
}

type fakeUsers struct {
	users map[string]models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

// testEnv wires a HandlerSet over the in-memory fakes and mounts the real
// route table, so requests exercise the same middleware chain production
// traffic does.
type testEnv struct {
	store  *fakeStore
	assets *fakeAssets
	shares *fakeShares
	users  *fakeUsers
	engine *gin.Engine
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()

	store := newFakeStore()
	assets := newFakeAssets()
	shares := newFakeShares()
	users := &fakeUsers{users: map[string]models.User{
		"owner":    {ID: "owner", DisplayName: "Owner", MaxModels: 2},
		"stranger": {ID: "stranger", DisplayName: "Stranger", MaxModels: 2},
		"admin":    {ID: "admin", DisplayName: "Admin", IsAdmin: true},
	}}

	secrets := security.CandidateSecrets(testSecret)
	notifier := notify.New(nil, logger)
	linker := service.NewCompanionLinker(assets, notifier, logger)
	quota := service.NewQuotaEnforcer(assets, users, 20)
	uploader := service.NewUploader(store, assets, quota, linker, notifier, logger)
	access := service.NewAccessResolver(shares, users, secrets)

	h := HandlerSet{
		log:      logger,
		cfg:      &config.AppConfig{Environment: "test"},
		secrets:  secrets,
		uploader: uploader,
		access:   access,
		quota:    quota,
		assets:   assets,
		shares:   shares,
		users:    users,
		store:    store,
	}

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Writer.Header().Set(httperr.RequestIDHeader, testRequestID)
	})

	noLimit := func(c *gin.Context) { c.Next() }
	h.Register(engine, noLimit, noLimit)

	return &testEnv{
		store:  store,
		assets: assets,
		shares: shares,
		users:  users,
		engine: engine,
	}
}

func bearerHeader(userID string) string {
	token, err := security.GenerateAccessToken(testSecret, userID, time.Minute)
	if err != nil {
		panic(err)
	}
	return "Bearer " + token
}
