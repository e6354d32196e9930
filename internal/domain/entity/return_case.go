package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// ReturnCase represents one merchandise return from request to closure
type ReturnCase struct {
	ID           int64          `json:"id"`
	ReturnNumber string         `json:"return_number"`
	Status       workflow.State `json:"status"`

	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	OrderItemID int64  `json:"order_item_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`

	CustomerID    int64  `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	VendorID    int64  `json:"vendor_id"`
	VendorName  string `json:"vendor_name"`
	VendorEmail string `json:"vendor_email"`
	VendorPhone string `json:"vendor_phone,omitempty"`

	ReturnType   ReturnType      `json:"return_type"`
	Reason       ReturnReason    `json:"reason"`
	ReasonDetail string          `json:"reason_detail,omitempty"`
	Quantity     int             `json:"quantity"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Currency     string          `json:"currency"`

	RejectionReason    string       `json:"rejection_reason,omitempty"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	PickupDate         *time.Time   `json:"pickup_date,omitempty"`
	CarrierName        string       `json:"carrier_name,omitempty"`
	AWBNumber          string       `json:"awb_number,omitempty"`
	InspectionPassed   *bool        `json:"inspection_passed,omitempty"`
	InspectionNotes    string       `json:"inspection_notes,omitempty"`
	RefundMethod       RefundMethod `json:"refund_method,omitempty"`
	RefundReference    string       `json:"refund_reference,omitempty"`

	Milestones Milestones `json:"milestones"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Milestones holds one timestamp per lifecycle milestone; each is set at most once
type Milestones struct {
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	RejectedAt          *time.Time `json:"rejected_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	PickupScheduledAt   *time.Time `json:"pickup_scheduled_at,omitempty"`
	InTransitAt         *time.Time `json:"in_transit_at,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	ReceivedAt          *time.Time `json:"received_at,omitempty"`
	InspectionStartedAt *time.Time `json:"inspection_started_at,omitempty"`
	InspectedAt         *time.Time `json:"inspected_at,omitempty"`
	RefundInitiatedAt   *time.Time `json:"refund_initiated_at,omitempty"`
	RefundCompletedAt   *time.Time `json:"refund_completed_at,omitempty"`
}

// For returns the milestone slot that records entry into state
func (m *Milestones) For(state workflow.State) **time.Time {
	switch state {
	case workflow.StateApproved:
		return &m.ApprovedAt
	case workflow.StateRejected:
		return &m.RejectedAt
	case workflow.StateCancelled:
		return &m.CancelledAt
	case workflow.StatePickupScheduled:
		return &m.PickupScheduledAt
	case workflow.StateInTransit:
		return &m.InTransitAt
	case workflow.StatePickedUp:
		return &m.PickedUpAt
	case workflow.StateReceived:
		return &m.ReceivedAt
	case workflow.StateInspecting:
		return &m.InspectionStartedAt
	case workflow.StateInspectionPassed, workflow.StateInspectionFailed:
		return &m.InspectedAt
	case workflow.StateRefundInitiated:
		return &m.RefundInitiatedAt
	case workflow.StateRefundCompleted:
		return &m.RefundCompletedAt
	default:
		return nil
	}
}

// Latest returns the most recent milestone that has been set
func (m Milestones) Latest() *time.Time {
	var latest *time.Time
	for _, t := range []*time.Time{
		m.ApprovedAt, m.RejectedAt, m.CancelledAt, m.PickupScheduledAt,
		m.InTransitAt, m.PickedUpAt, m.ReceivedAt, m.InspectionStartedAt,
		m.InspectedAt, m.RefundInitiatedAt, m.RefundCompletedAt,
	} {
		if t != nil && (latest == nil || t.After(*latest)) {
			latest = t
		}
	}
	return latest
}

// IsClosed reports whether the case reached a terminal status
func (c *ReturnCase) IsClosed() bool {
	return c.Status.IsTerminal()
}

// Clone returns a deep copy so callers can derive a new version without aliasing pointers
func (c *ReturnCase) Clone() *ReturnCase {
	out := *c
	out.PickupDate = copyTime(c.PickupDate)
	if c.InspectionPassed != nil {
		passed := *c.InspectionPassed
		out.InspectionPassed = &passed
	}
	out.Milestones = Milestones{
		ApprovedAt:          copyTime(c.Milestones.ApprovedAt),
		RejectedAt:          copyTime(c.Milestones.RejectedAt),
		CancelledAt:         copyTime(c.Milestones.CancelledAt),
		PickupScheduledAt:   copyTime(c.Milestones.PickupScheduledAt),
		InTransitAt:         copyTime(c.Milestones.InTransitAt),
		PickedUpAt:          copyTime(c.Milestones.PickedUpAt),
		ReceivedAt:          copyTime(c.Milestones.ReceivedAt),
		InspectionStartedAt: copyTime(c.Milestones.InspectionStartedAt),
		InspectedAt:         copyTime(c.Milestones.InspectedAt),
		RefundInitiatedAt:   copyTime(c.Milestones.RefundInitiatedAt),
		RefundCompletedAt:   copyTime(c.Milestones.RefundCompletedAt),
	}
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
