package workflow

import (
	"strings"
	"time"

	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// Actor identifies who performs a transition
type Actor struct {
	Type entity.ActorType `json:"type"`
	ID   string           `json:"id,omitempty"`
}

// SystemActor is used when no caller identity is supplied
var SystemActor = Actor{Type: entity.ActorSystem}

// Command requests one transition of a return case. Only the fields the
// trigger needs are read.
type Command struct {
	Trigger     domainwf.Trigger `json:"trigger"`
	Actor       Actor            `json:"actor"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`

	RejectionReason    string              `json:"rejection_reason,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	PickupDate         *time.Time          `json:"pickup_date,omitempty"`
	CarrierName        string              `json:"carrier_name,omitempty"`
	AWBNumber          string              `json:"awb_number,omitempty"`
	InspectionNotes    string              `json:"inspection_notes,omitempty"`
	RefundMethod       entity.RefundMethod `json:"refund_method,omitempty"`
	RefundReference    string              `json:"refund_reference,omitempty"`
}

// Validate checks the fields the trigger requires. It never looks at case state.
func (c Command) Validate() error {
	if !c.Trigger.IsValid() {
		return domainwf.NewValidationError("trigger", "unknown trigger "+string(c.Trigger))
	}
	if c.Actor.Type != "" && !c.Actor.Type.IsValid() {
		return domainwf.NewValidationError("actor.type", "unknown actor type "+string(c.Actor.Type))
	}

	switch c.Trigger {
	case domainwf.TriggerReject:
		if blank(c.RejectionReason) {
			return domainwf.NewValidationError("rejection_reason", "is required to reject a return")
		}
	case domainwf.TriggerSchedulePickup:
		if c.PickupDate == nil || c.PickupDate.IsZero() {
			return domainwf.NewValidationError("pickup_date", "is required to schedule a pickup")
		}
	case domainwf.TriggerConfirmPickup:
		if blank(c.AWBNumber) {
			return domainwf.NewValidationError("awb_number", "carrier reference is required to confirm pickup")
		}
	case domainwf.TriggerPassInspection, domainwf.TriggerFailInspection:
		if blank(c.InspectionNotes) {
			return domainwf.NewValidationError("inspection_notes", "are required to record an inspection outcome")
		}
	case domainwf.TriggerInitiateRefund:
		if !c.RefundMethod.IsValid() {
			return domainwf.NewValidationError("refund_method", "must be one of original_payment, wallet, bank_transfer, store_credit")
		}
	case domainwf.TriggerCompleteRefund:
		if blank(c.RefundReference) {
			return domainwf.NewValidationError("refund_reference", "settlement reference is required to complete a refund")
		}
	}
	return nil
}

func (c Command) actor() Actor {
	if c.Actor.Type == "" {
		return Actor{Type: entity.ActorSystem, ID: c.Actor.ID}
	}
	return c.Actor
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
