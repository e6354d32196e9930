package entity

// ReturnType is how the customer wants the return resolved
type ReturnType string

const (
	ReturnTypeRefund      ReturnType = "refund"
	ReturnTypeReplacement ReturnType = "replacement"
	ReturnTypeExchange    ReturnType = "exchange"
)

// IsValid reports whether t is one of the known return types
func (t ReturnType) IsValid() bool {
	switch t {
	case ReturnTypeRefund, ReturnTypeReplacement, ReturnTypeExchange:
		return true
	default:
		return false
	}
}

// ReturnReason is the customer-selected reason for a return
type ReturnReason string

const (
	ReasonDamaged        ReturnReason = "damaged"
	ReasonDefective      ReturnReason = "defective"
	ReasonWrongItem      ReturnReason = "wrong_item"
	ReasonNotAsDescribed ReturnReason = "not_as_described"
	ReasonSizeIssue      ReturnReason = "size_issue"
	ReasonQualityIssue   ReturnReason = "quality_issue"
	ReasonChangedMind    ReturnReason = "changed_mind"
	ReasonLateDelivery   ReturnReason = "late_delivery"
	ReasonMissingParts   ReturnReason = "missing_parts"
	ReasonOther          ReturnReason = "other"
)

var validReasons = map[ReturnReason]bool{
	ReasonDamaged:        true,
	ReasonDefective:      true,
	ReasonWrongItem:      true,
	ReasonNotAsDescribed: true,
	ReasonSizeIssue:      true,
	ReasonQualityIssue:   true,
	ReasonChangedMind:    true,
	ReasonLateDelivery:   true,
	ReasonMissingParts:   true,
	ReasonOther:          true,
}

// IsValid reports whether r is one of the known reasons
func (r ReturnReason) IsValid() bool {
	return validReasons[r]
}

// RefundMethod is where the refund is paid to
type RefundMethod string

const (
	RefundMethodOriginalPayment RefundMethod = "original_payment"
	RefundMethodWallet          RefundMethod = "wallet"
	RefundMethodBankTransfer    RefundMethod = "bank_transfer"
	RefundMethodStoreCredit     RefundMethod = "store_credit"
)

// IsValid reports whether m is one of the known refund methods
func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodOriginalPayment, RefundMethodWallet, RefundMethodBankTransfer, RefundMethodStoreCredit:
		return true
	default:
		return false
	}
}

// ActorType identifies who caused a tracking entry
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorVendor   ActorType = "vendor"
	ActorCourier  ActorType = "courier"
	ActorSystem   ActorType = "system"
)

// IsValid reports whether a is one of the known actor types
func (a ActorType) IsValid() bool {
	switch a {
	case ActorCustomer, ActorVendor, ActorCourier, ActorSystem:
		return true
	default:
		return false
	}
}

// Delivery status constants
const (
	DeliveryStatusSent         = "sent"
	DeliveryStatusDuplicate    = "duplicate"
	DeliveryStatusRenderFailed = "render_failed"
	DeliveryStatusFailed       = "failed"
)
