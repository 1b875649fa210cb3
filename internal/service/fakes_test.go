package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"barnlabs/api/internal/models"
	"barnlabs/api/internal/repository"
	"barnlabs/api/internal/storage"
)

// fakeBlobStore is an in-memory stand-in for the object store's multipart
// surface. Parts are merged in the order the caller enumerates them.
type fakeBlobStore struct {
	mu       sync.Mutex
	sessions map[string]map[int][]byte // uploadID -> partNumber -> bytes
	etags    map[string]map[int]string
	objects  map[string][]byte
	nextID   int

	failComplete bool
	removed      []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		sessions: make(map[string]map[int][]byte),
		etags:    make(map[string]map[int]string),
		objects:  make(map[string][]byte),
	}
}

func (f *fakeBlobStore) CreateMultipart(_ context.Context, key, contentType string, meta map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	uploadID := "upload-" + key + "-" + string(rune('a'+f.nextID))
	f.sessions[uploadID] = make(map[int][]byte)
	f.etags[uploadID] = make(map[int]string)
	return uploadID, nil
}

func (f *fakeBlobStore) PutPart(_ context.Context, key, uploadID string, partNumber int, body io.Reader, size int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[uploadID]
	if !ok {
		return "", errors.New("unknown upload session")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	session[partNumber] = data
	etag := "etag-" + uploadID + "-" + string(rune('0'+partNumber))
	f.etags[uploadID][partNumber] = etag
	return etag, nil
}

func (f *fakeBlobStore) CompleteMultipart(_ context.Context, key, uploadID string, parts []storage.Part) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failComplete {
		return "", errors.New("store unavailable")
	}
	session, ok := f.sessions[uploadID]
	if !ok {
		return "", errors.New("unknown upload session")
	}

	ordered := make([]storage.Part, len(parts))
	copy(ordered, parts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	var merged []byte
	for _, p := range ordered {
		data, ok := session[p.PartNumber]
		if !ok {
			return "", errors.New("missing part")
		}
		if f.etags[uploadID][p.PartNumber] != p.ETag {
			return "", errors.New("etag mismatch")
		}
		merged = append(merged, data...)
	}

	f.objects[key] = merged
	delete(f.sessions, uploadID)
	delete(f.etags, uploadID)
	return "merged-etag", nil
}

func (f *fakeBlobStore) AbortMultipart(_ context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[uploadID]; !ok {
		return errors.New("unknown upload session")
	}
	delete(f.sessions, uploadID)
	delete(f.etags, uploadID)
	return nil
}

func (f *fakeBlobStore) Stat(_ context.Context, key string) (storage.ObjectStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectStat{}, errors.New("no such key")
	}
	return storage.ObjectStat{Size: int64(len(data)), ETag: "merged-etag"}, nil
}

func (f *fakeBlobStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

// fakeAssetStore keeps asset rows in a map keyed by object key.
type fakeAssetStore struct {
	mu     sync.Mutex
	rows   map[string]models.Asset
	failed bool
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{rows: make(map[string]models.Asset)}
}

func (f *fakeAssetStore) Create(_ context.Context, asset models.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("insert failed")
	}
	f.rows[asset.Key] = asset
	return nil
}

func (f *fakeAssetStore) GetByKey(_ context.Context, key string) (models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asset, ok := f.rows[key]
	if !ok {
		return models.Asset{}, repository.ErrAssetNotFound
	}
	return asset, nil
}

func (f *fakeAssetStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[key]; !ok {
		return repository.ErrAssetNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeAssetStore) CountOwnerModels(_ context.Context, ownerID string) (int, error) {
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

func (f *fakeAssetStore) FindByDisplayNames(_ context.Context, ownerID string, names []string, excludeKey string) (models.Asset, error) {
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

func (f *fakeAssetStore) SetCompanion(_ context.Context, key string, companionKey string) error {
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

// fakeUserStore serves the user records quota and access checks read.
type fakeUserStore struct {
	users map[string]models.User
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

// fakeShareStore serves share lookups for the access resolver.
type fakeShareStore struct {
	shares map[string]models.Share
}

func (f *fakeShareStore) GetByID(_ context.Context, id string) (models.Share, error) {
	share, ok := f.shares[id]
	if !ok {
		return models.Share{}, repository.ErrShareNotFound
	}
	return share, nil
}

// fakeEvents records published events and signals on a channel so tests can
// wait for fire-and-forget side effects.
type fakeEvents struct {
	mu         sync.Mutex
	uploaded   []string
	linked     [][2]string
	suggested  []string
	signalOnce chan struct{}
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{signalOnce: make(chan struct{}, 16)}
}

func (f *fakeEvents) UploadCompleted(_ context.Context, asset models.Asset) error {
	f.mu.Lock()
	f.uploaded = append(f.uploaded, asset.Key)
	f.mu.Unlock()
	f.signalOnce <- struct{}{}
	return nil
}

func (f *fakeEvents) CompanionLinked(_ context.Context, key string, companionKey string) error {
	f.mu.Lock()
	f.linked = append(f.linked, [2]string{key, companionKey})
	f.mu.Unlock()
	f.signalOnce <- struct{}{}
	return nil
}

func (f *fakeEvents) SuggestCompanion(_ context.Context, asset models.Asset, expected []string) error {
	f.mu.Lock()
	f.suggested = append(f.suggested, asset.Key)
	f.mu.Unlock()
	f.signalOnce <- struct{}{}
	return nil
}
