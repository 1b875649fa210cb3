package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
	"barnlabs/api/internal/models"
	"barnlabs/api/internal/repository"
	"barnlabs/api/internal/service"
	"barnlabs/api/internal/storage"
)

const immutableCacheControl = "public, max-age=31536000, immutable"

// ProxyAsset streams an asset's bytes if any trust strategy grants the
// read: bearer credential, share referral, or scoped URL token (`t`).
func (h HandlerSet) ProxyAsset(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "asset key is required", nil)
		return
	}

	asset, err := h.assets.GetByKey(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			httperr.Write(c, http.StatusNotFound, httperr.CodeNotFound, "unknown asset", nil)
			return
		}
		h.log.Error().Err(err).Str("key", key).Msg("asset lookup failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	req := service.AccessRequest{
		BearerToken: bearerToken(c),
		Referer:     c.GetHeader("Referer"),
		URLToken:    c.Query("t"),
	}

	grant, err := h.access.Resolve(c.Request.Context(), req, asset)
	if err != nil {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "access denied", nil)
		return
	}

	body, stat, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		// A row whose object is gone reads as not-found, not as a failure:
		// deletion is a two-step sequence and the row may be the dangling half.
		if storage.IsNotFound(err) {
			httperr.Write(c, http.StatusNotFound, httperr.CodeNotFound, "unknown asset", nil)
			return
		}
		h.log.Error().Err(err).Str("key", key).Msg("object fetch failed")
		httperr.Write(c, http.StatusBadGateway, httperr.CodeStorageFailure, "object store unavailable", nil)
		return
	}
	defer body.Close()

	contentType := stat.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = models.ContentTypeForKey(key)
	}

	c.Header("Cache-Control", immutableCacheControl)
	c.Header("ETag", stat.ETag)
	c.Header("X-Access-Strategy", string(grant.Strategy))

	c.DataFromReader(http.StatusOK, stat.Size, contentType, body, nil)
}

func (h HandlerSet) DeleteAsset(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	asset, err := h.assets.GetByKey(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			httperr.Write(c, http.StatusNotFound, httperr.CodeNotFound, "unknown asset", nil)
			return
		}
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	if asset.OwnerID != user.ID && !user.IsAdmin {
		httperr.Write(c, http.StatusForbidden, httperr.CodeForbidden, "not the asset owner", nil)
		return
	}

	if err := h.uploader.Delete(c.Request.Context(), key); err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type assetResponse struct {
	Key           string    `json:"key"`
	DisplayName   string    `json:"displayName"`
	Category      string    `json:"category"`
	SizeBytes     int64     `json:"sizeBytes"`
	IsPublic      bool      `json:"isPublic"`
	IsAdminUpload bool      `json:"isAdminUpload"`
	CompanionKey  *string   `json:"companionKey,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toAssetResponse(a models.Asset) assetResponse {
	return assetResponse{
		Key:           a.Key,
		DisplayName:   a.DisplayName,
		Category:      string(a.Category),
		SizeBytes:     a.SizeBytes,
		IsPublic:      a.IsPublic,
		IsAdminUpload: a.IsAdminUpload,
		CompanionKey:  a.CompanionKey,
		CreatedAt:     a.CreatedAt,
	}
}

func (h HandlerSet) ListAssets(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	limit, offset := pagination(c)
	assets, err := h.assets.ListByOwner(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", user.ID).Msg("asset list failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	items := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		items = append(items, toAssetResponse(a))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) QuotaStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	current, limit, err := h.quota.Usage(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", user.ID).Msg("quota lookup failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current": current,
		"limit":   limit,
	})
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}
