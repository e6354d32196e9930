package port

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/marketplace-returns/internal/domain/notification"
	"github.com/shopspring/decimal"
)

var (
	// ErrTransient marks a sender failure worth retrying
	ErrTransient = errors.New("transient delivery failure")
	// ErrPermanent marks a sender failure that must not be retried
	ErrPermanent = errors.New("permanent delivery failure")
)

type classifiedError struct {
	class error
	err   error
}

func (e *classifiedError) Error() string {
	return fmt.Sprintf("%v: %v", e.class, e.err)
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.class, e.err}
}

// Transient wraps err so errors.Is(err, ErrTransient) holds
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrTransient, err: err}
}

// Permanent wraps err so errors.Is(err, ErrPermanent) holds
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrPermanent, err: err}
}

// IsPermanent reports whether a sender error must not be retried.
// Unclassified errors count as transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Recipient is the addressee of one outbound message
type Recipient struct {
	Name    string
	Address string // email address or phone number depending on channel
}

// DeliveryReceipt is returned by a channel sender on success
type DeliveryReceipt struct {
	ProviderRef string
	Duplicate   bool
	AcceptedAt  time.Time
}

// ChannelSender delivers rendered messages on one channel.
// idempotencyKey is stable across retries of the same logical emission.
type ChannelSender interface {
	Channel() notification.Channel
	Send(ctx context.Context, msg *notification.RenderedMessage, to Recipient, idempotencyKey string) (*DeliveryReceipt, error)
}

// DeliveryGuard remembers idempotency keys that were already delivered
type DeliveryGuard interface {
	// Seen returns the stored provider reference if key was delivered before
	Seen(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, providerRef string) error
}

// FailureAlert describes a delivery that gave up
type FailureAlert struct {
	EventCode      string
	CaseID         int64
	ReturnNumber   string
	Channel        notification.Channel
	IdempotencyKey string
	Attempts       int
	Err            string
}

// AlertNotifier surfaces exhausted or permanent delivery failures to operators
type AlertNotifier interface {
	NotifyFailure(ctx context.Context, alert FailureAlert) error
}

// OrderLine is the externally tracked order line a return is raised against
type OrderLine struct {
	OrderID            int64
	OrderNumber        string
	ItemID             int64
	ProductID          int64
	ProductName        string
	Quantity           int
	ReturnableQuantity int
	LineTotal          decimal.Decimal
	Currency           string

	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	VendorID    int64
	VendorName  string
	VendorEmail string
	VendorPhone string
}

// OrderLineProvider looks up order lines owned by the order system
type OrderLineProvider interface {
	GetOrderLine(ctx context.Context, orderItemID int64) (*OrderLine, error)
}
