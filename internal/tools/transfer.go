package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

func (r *Registry) transferToHuman(ctx context.Context, args *TransferToHumanArgs) (string, error) {
	urgency := args.Urgency
	if urgency == "" {
		urgency = "medium"
	}

	forwardingNumber := ""
	if r.tenant != nil {
		forwardingNumber = r.tenant.ForwardingNumber
	}
	if forwardingNumber == "" {
		r.logger.Info("Transfer requested but no forwarding number configured",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.String("reason", args.Reason))
		return "I don't have a direct line available right now, but I'll have a team member follow up with you shortly.", nil
	}

	note := fmt.Sprintf("Transfer requested: %s (urgency: %s)", args.Reason, urgency)
	if args.Notes != "" {
		note += " - " + args.Notes
	}

	call, err := r.store.GetCall(ctx, r.callCtx.CallID)
	if err != nil {
		r.logger.Error("Failed to read call before transfer",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
		return "", apperrors.NewPersistence("transfer to human", err)
	}

	notes := call.Notes
	if notes != "" {
		notes = strings.TrimRight(notes, "\n") + "\n"
	}
	notes += note

	transferred := true
	outcome := store.OutcomeTransferred
	if err := r.store.UpdateCall(ctx, r.callCtx.CallID, &store.CallUpdate{
		TransferredToHuman: &transferred,
		Outcome:            &outcome,
		Notes:              &notes,
	}); err != nil {
		r.logger.Error("Failed to mark call transferred",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
		return "", apperrors.NewPersistence("transfer to human", err)
	}

	r.appendEvent(ctx, "transfer_initiated", map[string]interface{}{
		"reason":  args.Reason,
		"urgency": urgency,
	})

	// The redirect only works with a live telephony leg. Failure is
	// operator-visible, not caller-visible.
	if r.callCtx.TelephonyCallID != "" && r.carrier != nil {
		if err := r.carrier.Redirect(ctx, r.callCtx.TelephonyCallID, forwardingNumber); err != nil {
			r.logger.Warn("Carrier redirect failed after transfer was recorded",
				zap.String("call_id", r.callCtx.CallID.Hex()),
				zap.String("telephony_call_id", r.callCtx.TelephonyCallID),
				zap.Error(err))
			r.appendEvent(ctx, "transfer_redirect_failed", map[string]interface{}{
				"telephony_call_id": r.callCtx.TelephonyCallID,
				"error":             err.Error(),
			})
		}
	}

	return "Of course. I'm transferring you to a team member now, please hold for just a moment.", nil
}
