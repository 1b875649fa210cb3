package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
)

func (h HandlerSet) AdminListAssets(c *gin.Context) {
	limit, offset := pagination(c)

	assets, err := h.assets.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("admin asset list failed")
		httperr.Write(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
		return
	}

	items := make([]map[string]interface{}, 0, len(assets))
	for _, a := range assets {
		items = append(items, map[string]interface{}{
			"key":           a.Key,
			"ownerId":       a.OwnerID,
			"displayName":   a.DisplayName,
			"category":      a.Category,
			"sizeBytes":     a.SizeBytes,
			"isPublic":      a.IsPublic,
			"isAdminUpload": a.IsAdminUpload,
			"companionKey":  a.CompanionKey,
			"createdAt":     a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
	})
}
