package event

// Payload keys available to notification templates
const (
	VarReturnNumber    = "return_number"
	VarOrderNumber     = "order_number"
	VarStatus          = "status"
	VarReturnType      = "return_type"
	VarReason          = "reason"
	VarCustomerName    = "customer_name"
	VarCustomerEmail   = "customer_email"
	VarCustomerPhone   = "customer_phone"
	VarVendorName      = "vendor_name"
	VarVendorEmail     = "vendor_email"
	VarVendorPhone     = "vendor_phone"
	VarProductName     = "product_name"
	VarQuantity        = "quantity"
	VarRefundAmount    = "refund_amount"
	VarCurrency        = "currency"
	VarRejectionReason = "rejection_reason"
	VarCancelReason    = "cancellation_reason"
	VarPickupDate      = "pickup_date"
	VarCarrierName     = "carrier_name"
	VarAWBNumber       = "awb_number"
	VarInspectionNotes = "inspection_notes"
	VarRefundMethod    = "refund_method"
	VarRefundReference = "refund_reference"
	VarReturnURL       = "return_url"
	VarTransitionedAt  = "transitioned_at"
)

// Recipient returns the payload keys holding the addressee's name and
// contact for the audience of the event type. email selects the email
// address, otherwise the phone number.
func (t Type) Recipient(email bool) (nameKey, addressKey string) {
	if t.Audience() == AudienceVendor {
		if email {
			return VarVendorName, VarVendorEmail
		}
		return VarVendorName, VarVendorPhone
	}
	if email {
		return VarCustomerName, VarCustomerEmail
	}
	return VarCustomerName, VarCustomerPhone
}
