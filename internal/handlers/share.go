package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
	"barnlabs/api/internal/ids"
	"barnlabs/api/internal/models"
	"barnlabs/api/internal/repository"
)

type createShareRequest struct {
	ContentSnapshot string     `json:"contentSnapshot" binding:"required"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

func (h HandlerSet) CreateShare(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Write(c, http.StatusBadRequest, httperr.CodeMissingFields, "contentSnapshot is required", nil)
		return
	}

	share := models.Share{
		ID:              ids.New(),
		OwnerID:         user.ID,
		ContentSnapshot: req.ContentSnapshot,
		CreatedAt:       time.Now().UTC(),
		ExpiresAt:       req.ExpiresAt,
	}

	if err := h.shares.Create(c.Request.Context(), share); err != nil {
		h.log.Error().Err(err).Str("owner_id", user.ID).Msg("share create failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":  share.ID,
		"url": "/s/" + share.ID,
	})
}

// ResolveShare is the public share page lookup. An expired share never
// resolves; it is indistinguishable from a missing one.
func (h HandlerSet) ResolveShare(c *gin.Context) {
	share, err := h.shares.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			httperr.Write(c, http.StatusNotFound, httperr.CodeNotFound, "unknown share", nil)
			return
		}
		h.log.Error().Err(err).Msg("share lookup failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	if share.Expired(time.Now()) {
		httperr.Write(c, http.StatusNotFound, httperr.CodeShareExpired, "share expired", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              share.ID,
		"ownerId":         share.OwnerID,
		"contentSnapshot": share.ContentSnapshot,
		"createdAt":       share.CreatedAt,
	})
}

func (h HandlerSet) DeleteShare(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		httperr.Write(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
		return
	}

	if err := h.shares.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			httperr.Write(c, http.StatusNotFound, httperr.CodeNotFound, "unknown share", nil)
			return
		}
		h.log.Error().Err(err).Msg("share delete failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
