package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
)

// ReturnEngine runs the return lifecycle. Every accepted transition writes
// the new status and one ledger entry atomically, then emits its events.
type ReturnEngine interface {
	// RequestReturn opens a new case in the requested state
	RequestReturn(ctx context.Context, req RequestInput) (*entity.ReturnCase, error)

	Approve(ctx context.Context, caseID int64, actor Actor) (*entity.ReturnCase, error)
	Reject(ctx context.Context, caseID int64, actor Actor, reason string) (*entity.ReturnCase, error)
	Cancel(ctx context.Context, caseID int64, actor Actor, reason string) (*entity.ReturnCase, error)
	SchedulePickup(ctx context.Context, caseID int64, actor Actor, pickupDate time.Time, carrier string) (*entity.ReturnCase, error)
	MarkInTransit(ctx context.Context, caseID int64, actor Actor, location string) (*entity.ReturnCase, error)
	MarkPickedUp(ctx context.Context, caseID int64, actor Actor, awbNumber string) (*entity.ReturnCase, error)
	MarkReceived(ctx context.Context, caseID int64, actor Actor, location string) (*entity.ReturnCase, error)
	StartInspection(ctx context.Context, caseID int64, actor Actor) (*entity.ReturnCase, error)
	PassInspection(ctx context.Context, caseID int64, actor Actor, notes string) (*entity.ReturnCase, error)
	FailInspection(ctx context.Context, caseID int64, actor Actor, notes string) (*entity.ReturnCase, error)
	InitiateRefund(ctx context.Context, caseID int64, actor Actor, method entity.RefundMethod) (*entity.ReturnCase, error)
	CompleteRefund(ctx context.Context, caseID int64, actor Actor, reference string) (*entity.ReturnCase, error)

	// Apply runs any transition described by a command
	Apply(ctx context.Context, caseID int64, cmd Command) (*entity.ReturnCase, error)

	GetCase(ctx context.Context, caseID int64) (*entity.ReturnCase, error)
	GetCaseByNumber(ctx context.Context, returnNumber string) (*entity.ReturnCase, error)

	// Tracking returns the case's ledger in insertion order
	Tracking(ctx context.Context, caseID int64) ([]*entity.TrackingEntry, error)

	// Renotify delivers one of the case's events again and waits for the
	// notification handlers to finish
	Renotify(ctx context.Context, caseID int64, eventType event.Type) error
}

// RequestInput carries a customer's return request
type RequestInput struct {
	OrderItemID  int64               `json:"order_item_id" validate:"required,gt=0"`
	CustomerID   int64               `json:"customer_id" validate:"required,gt=0"`
	ReturnType   entity.ReturnType   `json:"return_type" validate:"required,oneof=refund replacement exchange"`
	Reason       entity.ReturnReason `json:"reason" validate:"required"`
	ReasonDetail string              `json:"reason_detail" validate:"max=2000"`
	Quantity     int                 `json:"quantity" validate:"required,gt=0"`
	RefundAmount decimal.Decimal     `json:"refund_amount"`
	Actor        Actor               `json:"actor"`
}
