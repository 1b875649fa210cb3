package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"barnlabs/api/internal/models"
	"barnlabs/api/internal/security"
)

const accessTestSecret = "access-test-secret"

func newTestResolver(shares *fakeShareStore, users *fakeUserStore) *AccessResolver {
	return NewAccessResolver(shares, users, []string{accessTestSecret})
}

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := security.GenerateAccessToken(accessTestSecret, userID, time.Minute)
	require.NoError(t, err)
	return token
}

func TestResolveBearerOwner(t *testing.T) {
	users := &fakeUserStore{users: map[string]models.User{
		"owner": {ID: "owner"},
	}}
	resolver := newTestResolver(&fakeShareStore{}, users)

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}
	grant, err := resolver.Resolve(context.Background(), AccessRequest{
		BearerToken: bearerFor(t, "owner"),
	}, asset)
	require.NoError(t, err)
	require.Equal(t, StrategyBearer, grant.Strategy)
	require.Equal(t, "owner", grant.UserID)
}

func TestResolveBearerDeniedForStranger(t *testing.T) {
	users := &fakeUserStore{users: map[string]models.User{
		"stranger": {ID: "stranger"},
	}}
	resolver := newTestResolver(&fakeShareStore{}, users)

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}
	_, err := resolver.Resolve(context.Background(), AccessRequest{
		BearerToken: bearerFor(t, "stranger"),
	}, asset)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestResolveAdminSharedReadableByAnyIdentity(t *testing.T) {
	users := &fakeUserStore{users: map[string]models.User{
		"stranger": {ID: "stranger"},
	}}
	resolver := newTestResolver(&fakeShareStore{}, users)

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner", IsPublic: true, IsAdminUpload: true}
	grant, err := resolver.Resolve(context.Background(), AccessRequest{
		BearerToken: bearerFor(t, "stranger"),
	}, asset)
	require.NoError(t, err)
	require.Equal(t, StrategyBearer, grant.Strategy)
}

func TestResolveBearerWinsOverShareReferral(t *testing.T) {
	users := &fakeUserStore{users: map[string]models.User{
		"owner": {ID: "owner"},
	}}
	shares := &fakeShareStore{shares: map[string]models.Share{
		"sh1": {ID: "sh1", OwnerID: "owner"},
	}}
	resolver := newTestResolver(shares, users)

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}
	grant, err := resolver.Resolve(context.Background(), AccessRequest{
		BearerToken: bearerFor(t, "owner"),
		Referer:     "https://viewer.example/s/sh1",
	}, asset)
	require.NoError(t, err)
	require.Equal(t, StrategyBearer, grant.Strategy)
}

func TestResolveShareReferral(t *testing.T) {
	shares := &fakeShareStore{shares: map[string]models.Share{
		"sh1": {ID: "sh1", OwnerID: "owner"},
	}}
	resolver := newTestResolver(shares, &fakeUserStore{})

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}
	grant, err := resolver.Resolve(context.Background(), AccessRequest{
		Referer: "https://viewer.example/s/sh1",
	}, asset)
	require.NoError(t, err)
	require.Equal(t, StrategyShare, grant.Strategy)
	require.Empty(t, grant.UserID)
}

func TestResolveExpiredShareDenied(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	shares := &fakeShareStore{shares: map[string]models.Share{
		"sh1": {ID: "sh1", OwnerID: "owner", ExpiresAt: &expired},
	}}
	resolver := newTestResolver(shares, &fakeUserStore{})

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}
	_, err := resolver.Resolve(context.Background(), AccessRequest{
		Referer: "https://viewer.example/s/sh1",
	}, asset)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestResolveShareOwnerMismatchDenied(t *testing.T) {
	shares := &fakeShareStore{shares: map[string]models.Share{
		"sh1": {ID: "sh1", OwnerID: "someone-else"},
	}}
	resolver := newTestResolver(shares, &fakeUserStore{})

	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}
	_, err := resolver.Resolve(context.Background(), AccessRequest{
		Referer: "https://viewer.example/s/sh1",
	}, asset)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestResolveURLToken(t *testing.T) {
	resolver := newTestResolver(&fakeShareStore{}, &fakeUserStore{})
	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}

	token, err := security.GenerateAssetToken(accessTestSecret, asset.Key, time.Minute)
	require.NoError(t, err)

	grant, err := resolver.Resolve(context.Background(), AccessRequest{URLToken: token}, asset)
	require.NoError(t, err)
	require.Equal(t, StrategyURLToken, grant.Strategy)
}

func TestResolveURLTokenWrongKeyDenied(t *testing.T) {
	resolver := newTestResolver(&fakeShareStore{}, &fakeUserStore{})
	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}

	token, err := security.GenerateAssetToken(accessTestSecret, "model/2_b.glb", time.Minute)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), AccessRequest{URLToken: token}, asset)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestResolveNothingPresented(t *testing.T) {
	resolver := newTestResolver(&fakeShareStore{}, &fakeUserStore{})
	asset := models.Asset{Key: "model/1_a.glb", OwnerID: "owner"}

	_, err := resolver.Resolve(context.Background(), AccessRequest{}, asset)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestShareIDFromReferer(t *testing.T) {
	cases := []struct {
		referer string
		want    string
	}{
		{"https://viewer.example/s/abc123", "abc123"},
		{"https://viewer.example/app/s/abc123", "abc123"},
		{"https://viewer.example/s/abc123/", "abc123"},
		{"https://viewer.example/share/abc123", ""},
		{"https://viewer.example/s/", ""},
		{"https://viewer.example/", ""},
		{"", ""},
		{"::not-a-url", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ShareIDFromReferer(tc.referer), "referer %q", tc.referer)
	}
}
