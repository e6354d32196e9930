package workflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
)

// buildBundle assembles template variables from the case's current fields.
// Optional fields are only present once set, so templates that need them
// fail to render instead of rendering blanks.
func buildBundle(rc *entity.ReturnCase, returnURLBase string) map[string]string {
	b := map[string]string{
		event.VarReturnNumber:   rc.ReturnNumber,
		event.VarOrderNumber:    rc.OrderNumber,
		event.VarStatus:         rc.Status.String(),
		event.VarReturnType:     string(rc.ReturnType),
		event.VarReason:         string(rc.Reason),
		event.VarCustomerName:   rc.CustomerName,
		event.VarVendorName:     rc.VendorName,
		event.VarProductName:    rc.ProductName,
		event.VarQuantity:       strconv.Itoa(rc.Quantity),
		event.VarRefundAmount:   rc.RefundAmount.StringFixed(2),
		event.VarCurrency:       rc.Currency,
		event.VarTransitionedAt: rc.UpdatedAt.UTC().Format(time.RFC3339),
	}

	optional := map[string]string{
		event.VarCustomerEmail:   rc.CustomerEmail,
		event.VarCustomerPhone:   rc.CustomerPhone,
		event.VarVendorEmail:     rc.VendorEmail,
		event.VarVendorPhone:     rc.VendorPhone,
		event.VarRejectionReason: rc.RejectionReason,
		event.VarCancelReason:    rc.CancellationReason,
		event.VarCarrierName:     rc.CarrierName,
		event.VarAWBNumber:       rc.AWBNumber,
		event.VarInspectionNotes: rc.InspectionNotes,
		event.VarRefundMethod:    string(rc.RefundMethod),
		event.VarRefundReference: rc.RefundReference,
	}
	for k, v := range optional {
		if v != "" {
			b[k] = v
		}
	}

	if rc.PickupDate != nil {
		b[event.VarPickupDate] = rc.PickupDate.Format("2006-01-02")
	}
	if returnURLBase != "" {
		b[event.VarReturnURL] = strings.TrimRight(returnURLBase, "/") + "/" + rc.ReturnNumber
	}
	return b
}
