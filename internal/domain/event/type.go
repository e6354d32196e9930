package event

import "strings"

// Type identifies the type of domain event
type Type string

const (
	TypeReturnRequested        Type = "return.requested"
	TypeReturnApproved         Type = "return.approved"
	TypeReturnRejected         Type = "return.rejected"
	TypeReturnCancelled        Type = "return.cancelled"
	TypeReturnPickupScheduled  Type = "return.pickup_scheduled"
	TypeReturnInTransit        Type = "return.in_transit"
	TypeReturnPickedUp         Type = "return.picked_up"
	TypeReturnReceived         Type = "return.received"
	TypeReturnInspecting       Type = "return.inspecting"
	TypeReturnInspectionPassed Type = "return.inspection_passed"
	TypeReturnInspectionFailed Type = "return.inspection_failed"
	TypeReturnRefundInitiated  Type = "return.refund_initiated"
	TypeReturnRefundCompleted  Type = "return.refund_completed"
	TypeVendorReturnRequested  Type = "vendor.return_requested"
)

// AllTypes lists every event code the return workflow emits
var AllTypes = []Type{
	TypeReturnRequested,
	TypeReturnApproved,
	TypeReturnRejected,
	TypeReturnCancelled,
	TypeReturnPickupScheduled,
	TypeReturnInTransit,
	TypeReturnPickedUp,
	TypeReturnReceived,
	TypeReturnInspecting,
	TypeReturnInspectionPassed,
	TypeReturnInspectionFailed,
	TypeReturnRefundInitiated,
	TypeReturnRefundCompleted,
	TypeVendorReturnRequested,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Category is the dotted prefix of the event code ("return", "vendor")
func (t Type) Category() string {
	if i := strings.IndexByte(string(t), '.'); i > 0 {
		return string(t)[:i]
	}
	return string(t)
}

// Audience is who an event's notifications are addressed to
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceVendor   Audience = "vendor"
)

// Audience derives the addressee from the event category
func (t Type) Audience() Audience {
	if t.Category() == "vendor" {
		return AudienceVendor
	}
	return AudienceCustomer
}
