package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
	"barnlabs/api/internal/service"
	"barnlabs/api/internal/storage"
)

type createUploadRequest struct {
	FileName string `json:"fileName" binding:"required"`
	MimeType string `json:"mimeType"`
	Public   bool   `json:"public"`
}

type completeUploadRequest struct {
	Key          string         `json:"key" binding:"required"`
	UploadID     string         `json:"uploadId" binding:"required"`
	Parts        []storage.Part `json:"parts" binding:"required"`
	OriginalName string         `json:"originalName"`
	Size         int64          `json:"size"`
	Public       bool           `json:"public"`
}

func (h HandlerSet) CreateUpload(c *gin.Context) {
	h.createUpload(c, false)
}

func (h HandlerSet) AdminCreateUpload(c *gin.Context) {
	h.createUpload(c, true)
}

func (h HandlerSet) createUpload(c *gin.Context, asAdmin bool) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	var req createUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "fileName is required", nil)
		return
	}

	result, err := h.uploader.Create(c.Request.Context(), service.CreateInput{
		FileName: req.FileName,
		MimeType: req.MimeType,
		OwnerID:  user.ID,
		AsAdmin:  asAdmin,
		AdminID:  user.ID,
		Public:   req.Public,
	})
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":      result.Key,
		"uploadId": result.UploadID,
	})
}

func (h HandlerSet) UploadPart(c *gin.Context) {
	key := c.Query("key")
	uploadID := c.Query("uploadId")
	partNumber, convErr := strconv.Atoi(c.Query("partNumber"))

	if key == "" || uploadID == "" || convErr != nil || partNumber < 1 {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "key, uploadId and partNumber are required", nil)
		return
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "request body is empty", nil)
		return
	}

	etag, err := h.uploader.UploadPart(c.Request.Context(), key, uploadID, partNumber, c.Request.Body, c.Request.ContentLength)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"etag": etag})
}

func (h HandlerSet) CompleteUpload(c *gin.Context) {
	h.completeUpload(c, false)
}

func (h HandlerSet) AdminCompleteUpload(c *gin.Context) {
	h.completeUpload(c, true)
}

func (h HandlerSet) completeUpload(c *gin.Context, asAdmin bool) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	var req completeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "key, uploadId and parts are required", nil)
		return
	}

	asset, err := h.uploader.Complete(c.Request.Context(), service.CompleteInput{
		Key:          req.Key,
		UploadID:     req.UploadID,
		Parts:        req.Parts,
		OriginalName: req.OriginalName,
		DeclaredSize: req.Size,
		OwnerID:      user.ID,
		AsAdmin:      asAdmin,
		AdminID:      user.ID,
		Public:       req.Public,
	})
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"key":     asset.Key,
		"url":     "/api/v1/asset/" + asset.Key,
	})
}

func (h HandlerSet) AbortUpload(c *gin.Context) {
	key := c.Query("key")
	uploadID := c.Query("uploadId")
	if key == "" || uploadID == "" {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "key and uploadId are required", nil)
		return
	}

	if err := h.uploader.Abort(c.Request.Context(), key, uploadID); err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) writeUploadError(c *gin.Context, err error) {
	var quotaErr *service.QuotaError

	switch {
	case errors.As(err, &quotaErr):
		httperr.Write(c, http.StatusBadRequest, httperr.CodeQuotaExceeded, quotaErr.Error(), gin.H{
			"current": quotaErr.Current,
			"limit":   quotaErr.Limit,
		})
	case errors.Is(err, service.ErrMissingFields):
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "missing required fields", nil)
	case errors.Is(err, service.ErrNoExtension):
		httperr.Write(c, http.StatusBadRequest, httperr.CodeUnsupportedExt, "file name must carry an extension", nil)
	case errors.Is(err, service.ErrEmptyParts):
		httperr.Write(c, http.StatusBadRequest, httperr.CodeValidation, "parts list is empty or incomplete", nil)
	case errors.Is(err, service.ErrMetadata):
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeMetadataFailure, "metadata write failed, upload rolled back", nil)
	case errors.Is(err, service.ErrStorage):
		httperr.Write(c, http.StatusBadGateway, httperr.CodeStorageFailure, "object store unavailable", nil)
	default:
		h.log.Error().Err(err).Msg("upload operation failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
	}
}
