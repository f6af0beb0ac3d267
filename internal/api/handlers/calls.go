package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// ListCalls returns recent calls, optionally filtered by tenant.
func (h *Handler) ListCalls(c *gin.Context) {
	tenantID := c.Query("tenant_id")

	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 || parsed > 500 {
			apperrors.BadRequest(c, "limit must be a positive integer up to 500")
			return
		}
		limit = parsed
	}

	calls, err := h.store.ListCalls(c.Request.Context(), tenantID, limit)
	if err != nil {
		apperrors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"calls": calls, "count": len(calls)})
}

// GetCall returns one call by id.
func (h *Handler) GetCall(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		apperrors.BadRequest(c, "invalid call id")
		return
	}

	call, err := h.store.GetCall(c.Request.Context(), id)
	if apperrors.IsNotFound(err) {
		apperrors.NotFound(c, "call not found")
		return
	}
	if err != nil {
		apperrors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, call)
}
