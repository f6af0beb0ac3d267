package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/pkg/crm"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

func (r *Registry) createLead(ctx context.Context, args *CreateLeadArgs) (string, error) {
	phone := firstNonEmpty(args.Phone, r.callCtx.CallerPhone)
	if args.Email == "" && phone == "" {
		return "I'd love to have someone follow up with you. Could I get a phone number or email address so our team can reach you?", nil
	}

	interest := args.InterestLevel
	if interest == "" {
		interest = "medium"
	}

	lead := &store.Lead{
		TenantID:      r.callCtx.TenantID,
		CallID:        objectIDPtr(r.callCtx.CallID),
		Name:          args.Name,
		Email:         args.Email,
		Phone:         phone,
		Company:       args.Company,
		InterestLevel: interest,
		Notes:         args.Notes,
	}

	if err := r.store.CreateLead(ctx, lead); err != nil {
		r.logger.Error("Failed to persist lead",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
		return "", apperrors.NewPersistence("create lead", err)
	}

	// CRM sync is best effort. The lead counts as captured either way.
	if r.tenant != nil && r.tenant.HasCRM() && r.crm != nil {
		contact, crmErr := r.crm.CreateContact(ctx, &crm.ContactRequest{
			TenantID: r.callCtx.TenantID,
			Name:     args.Name,
			Phone:    phone,
			Email:    args.Email,
			Source:   "voice-agent",
			Notes:    args.Notes,
		})
		if crmErr != nil {
			r.logger.Warn("CRM contact creation failed, lead kept locally",
				zap.String("lead_id", lead.ID.Hex()),
				zap.Error(crmErr))
		} else {
			syncedAt := r.now()
			if err := r.store.UpdateLead(ctx, lead.ID, &store.LeadUpdate{
				CRMContactID: &contact.ID,
				CRMSyncedAt:  &syncedAt,
			}); err != nil {
				r.logger.Warn("Failed to back-fill CRM contact id",
					zap.String("lead_id", lead.ID.Hex()),
					zap.Error(err))
			}
		}
	}

	outcome := store.OutcomeLeadCaptured
	update := &store.CallUpdate{Outcome: &outcome}
	if phone != "" && r.callCtx.CallerPhone == "" {
		update.CallerPhone = &phone
	}
	if err := r.store.UpdateCall(ctx, r.callCtx.CallID, update); err != nil {
		r.logger.Warn("Failed to set call outcome",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
	}

	r.appendEvent(ctx, "lead_captured", map[string]interface{}{
		"lead_id":        lead.ID.Hex(),
		"interest_level": interest,
	})

	return fmt.Sprintf("Thanks, %s! I've saved your information and someone from our team will be in touch soon.", args.Name), nil
}

func (r *Registry) lookupCustomer(ctx context.Context, args *LookupCustomerArgs) (string, error) {
	phone := firstNonEmpty(args.Phone, r.callCtx.CallerPhone)
	if phone == "" {
		return "Of course, I can check that for you. Could you share the phone number you'd like me to look up?", nil
	}

	lead, err := r.store.FindRecentLeadByPhone(ctx, r.callCtx.TenantID, phone)
	if apperrors.IsNotFound(err) {
		return "Welcome! It looks like this is your first time reaching out to us. How can I help you today?", nil
	}
	if err != nil {
		r.logger.Warn("Customer lookup failed, using generic greeting",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
		return "Welcome! How can I help you today?", nil
	}

	r.appendEvent(ctx, "customer_lookup", map[string]interface{}{
		"lead_id": lead.ID.Hex(),
		"status":  lead.Status,
	})

	lastContact := lead.CreatedAt.Format("January 2, 2006")
	if lead.Status == store.LeadStatusConverted {
		return fmt.Sprintf("Welcome back, %s! It's great to hear from one of our customers again. We last spoke on %s. What can I do for you today?",
			lead.Name, lastContact), nil
	}
	return fmt.Sprintf("Welcome back, %s! I see we last spoke on %s. How can I help you today?",
		lead.Name, lastContact), nil
}
