package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// ErrNotFound is returned by repositories when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// ReturnCaseRepository defines persistence operations for ReturnCase
type ReturnCaseRepository interface {
	// Create inserts a new case and sets its ID
	Create(ctx context.Context, rc *entity.ReturnCase) error

	GetByID(ctx context.Context, id int64) (*entity.ReturnCase, error)
	GetByReturnNumber(ctx context.Context, returnNumber string) (*entity.ReturnCase, error)

	// CompareAndSetStatus writes updated only if the stored status still equals
	// expected. It returns false, nil when another writer got there first.
	CompareAndSetStatus(ctx context.Context, id int64, expected workflow.State, updated *entity.ReturnCase) (bool, error)
}

// TrackingRepository is the append-only tracking ledger store.
// There is intentionally no update or delete.
type TrackingRepository interface {
	Append(ctx context.Context, entry *entity.TrackingEntry) error
	// ListByCase returns entries in insertion order
	ListByCase(ctx context.Context, caseID int64) ([]*entity.TrackingEntry, error)
}

// TemplateRepository defines persistence operations for notification templates
type TemplateRepository interface {
	Upsert(ctx context.Context, tmpl *notification.Template) error
	GetByCode(ctx context.Context, code string) (*notification.Template, error)
	ListActive(ctx context.Context) ([]*notification.Template, error)
}

// TriggerRepository defines persistence operations for event triggers
type TriggerRepository interface {
	Upsert(ctx context.Context, trig *notification.EventTrigger) error
	GetByCode(ctx context.Context, eventCode string) (*notification.EventTrigger, error)
	List(ctx context.Context) ([]*notification.EventTrigger, error)
}

// DeliveryFilter narrows delivery log queries
type DeliveryFilter struct {
	Since time.Time
	Limit int
}

// DeliveryRepository is the operator-visible delivery log
type DeliveryRepository interface {
	Record(ctx context.Context, d *entity.NotificationDelivery) error
	// ListFailures returns render_failed and failed deliveries, newest first
	ListFailures(ctx context.Context, filter DeliveryFilter) ([]*entity.NotificationDelivery, error)
	ListByCase(ctx context.Context, caseID int64) ([]*entity.NotificationDelivery, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
