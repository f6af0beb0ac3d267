package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
	"github.com/troikatech/voice-agent/pkg/phone"
)

// telephonyWebhook is the provider's call-status callback payload.
type telephonyWebhook struct {
	CallSid   string `form:"CallSid" json:"CallSid"`
	Status    string `form:"Status" json:"Status"`
	From      string `form:"From" json:"From"`
	To        string `form:"To" json:"To"`
	Direction string `form:"Direction" json:"Direction"`
	TenantID  string `form:"TenantId" json:"TenantId"`
}

// TelephonyWebhook receives carrier call-status callbacks. The first
// callback for a leg creates the call row; later ones record status
// transitions.
func (h *Handler) TelephonyWebhook(c *gin.Context) {
	var payload telephonyWebhook
	if err := c.ShouldBind(&payload); err != nil || payload.CallSid == "" {
		apperrors.BadRequest(c, "missing or malformed call status payload")
		return
	}

	ctx := c.Request.Context()
	h.logger.Info("Telephony webhook received",
		zap.String("call_sid", payload.CallSid),
		zap.String("status", payload.Status),
		zap.String("caller", phone.Mask(payload.From)))

	call, err := h.store.GetCallBySession(ctx, payload.CallSid)
	switch {
	case apperrors.IsNotFound(err):
		caller := payload.From
		if normalized, nerr := phone.Normalize(payload.From); nerr == nil {
			caller = normalized
		}
		direction := payload.Direction
		if direction == "" {
			direction = "inbound"
		}
		call = &store.Call{
			TenantID:        payload.TenantID,
			Direction:       direction,
			CallerPhone:     caller,
			CalleePhone:     payload.To,
			SessionID:       payload.CallSid,
			TelephonyCallID: payload.CallSid,
			TelephonyStatus: payload.Status,
		}
		if err := h.store.CreateCall(ctx, call); err != nil {
			apperrors.InternalError(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, gin.H{"call_id": call.ID.Hex(), "created": true})
		return
	case err != nil:
		apperrors.InternalError(c, err, h.logger)
		return
	}

	update := &store.CallUpdate{TelephonyStatus: &payload.Status}
	switch payload.Status {
	case "in-progress":
		if call.AnsweredAt == nil {
			now := time.Now()
			update.AnsweredAt = &now
		}
	case "failed", "busy", "no-answer":
		if call.Status == store.StatusInProgress {
			failed := store.StatusFailed
			update.Status = &failed
		}
	}

	if err := h.store.UpdateCall(ctx, call.ID, update); err != nil && !apperrors.IsValidation(err) {
		apperrors.InternalError(c, err, h.logger)
		return
	}

	_ = h.store.AppendEvent(ctx, &store.CallEvent{
		CallID:    call.ID,
		EventType: "telephony_status",
		EventData: map[string]interface{}{"status": payload.Status},
	})

	c.JSON(http.StatusOK, gin.H{"call_id": call.ID.Hex(), "created": false})
}
