package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/garyjia/marketplace-returns/internal/application/dispatcher"
	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of ReturnEngine
type engineImpl struct {
	caseRepo     port.ReturnCaseRepository
	trackingRepo port.TrackingRepository
	txManager    port.TransactionManager
	orderLines   port.OrderLineProvider
	dispatcher   dispatcher.Dispatcher
	logger       Logger
	validate     *validator.Validate

	now           func() time.Time
	returnURLBase string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for all timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithReturnURLBase sets the customer-facing tracking URL prefix used for return_url
func WithReturnURLBase(base string) EngineOption {
	return func(e *engineImpl) {
		e.returnURLBase = base
	}
}

// NewEngine creates a new return workflow engine
func NewEngine(
	caseRepo port.ReturnCaseRepository,
	trackingRepo port.TrackingRepository,
	txManager port.TransactionManager,
	orderLines port.OrderLineProvider,
	opts ...EngineOption,
) ReturnEngine {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	e := &engineImpl{
		caseRepo:     caseRepo,
		trackingRepo: trackingRepo,
		txManager:    txManager,
		orderLines:   orderLines,
		validate:     v,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RequestReturn validates a request against its order line and opens a case.
// The returnable quantity is read inside the write transaction, which the
// store serializes, so concurrent requests for one line cannot over-return.
func (e *engineImpl) RequestReturn(ctx context.Context, req RequestInput) (*entity.ReturnCase, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	actor := req.Actor
	if actor.Type == "" {
		actor = Actor{Type: entity.ActorCustomer, ID: fmt.Sprint(req.CustomerID)}
	}

	var rc *entity.ReturnCase
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		line, err := e.orderLines.GetOrderLine(txCtx, req.OrderItemID)
		if errors.Is(err, port.ErrNotFound) {
			return domainwf.NewValidationError("order_item_id", "order line does not exist")
		}
		if err != nil {
			return fmt.Errorf("failed to load order line %d: %w", req.OrderItemID, err)
		}
		if err := checkAgainstLine(req, line); err != nil {
			return err
		}

		now := e.now()
		rc = newReturnCase(req, line, now)
		if err := e.caseRepo.Create(txCtx, rc); err != nil {
			return fmt.Errorf("failed to create return case: %w", err)
		}
		entry := newEntry(rc, Command{Actor: actor}, now)
		if err := e.trackingRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to append tracking entry: %w", err)
		}
		return nil
	})
	if err != nil {
		if domainwf.IsValidation(err) {
			e.logInfo("Return request refused", "order_item_id", req.OrderItemID, "error", err)
		} else {
			e.logError("Return request failed", "order_item_id", req.OrderItemID, "error", err)
		}
		return nil, err
	}

	e.logInfo("Return requested",
		"case_id", rc.ID,
		"return_number", rc.ReturnNumber,
		"order_item_id", rc.OrderItemID,
		"quantity", rc.Quantity,
	)

	e.emit(ctx, rc, eventTypesFor(domainwf.StateRequested))
	return rc, nil
}

func checkAgainstLine(req RequestInput, line *port.OrderLine) error {
	if line.CustomerID != req.CustomerID {
		return domainwf.NewValidationError("customer_id", "order line belongs to another customer")
	}
	if req.Quantity > line.ReturnableQuantity {
		return domainwf.NewValidationError("quantity",
			fmt.Sprintf("exceeds returnable quantity %d", line.ReturnableQuantity))
	}
	if req.RefundAmount.IsNegative() {
		return domainwf.NewValidationError("refund_amount", "must not be negative")
	}
	if req.RefundAmount.GreaterThan(line.LineTotal) {
		return domainwf.NewValidationError("refund_amount",
			fmt.Sprintf("exceeds line total %s", line.LineTotal.StringFixed(2)))
	}
	return nil
}

func newReturnCase(req RequestInput, line *port.OrderLine, now time.Time) *entity.ReturnCase {
	return &entity.ReturnCase{
		ReturnNumber:  newReturnNumber(now),
		Status:        domainwf.StateRequested,
		OrderID:       line.OrderID,
		OrderNumber:   line.OrderNumber,
		OrderItemID:   line.ItemID,
		ProductID:     line.ProductID,
		ProductName:   line.ProductName,
		CustomerID:    line.CustomerID,
		CustomerName:  line.CustomerName,
		CustomerEmail: line.CustomerEmail,
		CustomerPhone: line.CustomerPhone,
		VendorID:      line.VendorID,
		VendorName:    line.VendorName,
		VendorEmail:   line.VendorEmail,
		VendorPhone:   line.VendorPhone,
		ReturnType:    req.ReturnType,
		Reason:        req.Reason,
		ReasonDetail:  strings.TrimSpace(req.ReasonDetail),
		Quantity:      req.Quantity,
		RefundAmount:  req.RefundAmount,
		LineTotal:     line.LineTotal,
		Currency:      line.Currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Apply runs one transition: validate, check precondition, then CAS the
// status and append the ledger entry in one transaction, then emit.
func (e *engineImpl) Apply(ctx context.Context, caseID int64, cmd Command) (*entity.ReturnCase, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := e.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load return case %d: %w", caseID, err)
	}

	outcome, err := ApplyTransition(current, cmd, e.now())
	if err != nil {
		e.logInfo("Transition refused",
			"case_id", caseID,
			"trigger", cmd.Trigger,
			"current_state", current.Status,
			"error", err,
		)
		return nil, err
	}

	// past the precondition check the write runs to completion
	err = e.txManager.WithTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		swapped, err := e.caseRepo.CompareAndSetStatus(txCtx, caseID, outcome.Previous, outcome.Case)
		if err != nil {
			return fmt.Errorf("failed to update return case status: %w", err)
		}
		if !swapped {
			return &domainwf.ConflictError{CaseID: caseID, Trigger: cmd.Trigger, Current: e.currentStatus(txCtx, caseID, outcome.Previous)}
		}

		if err := e.trackingRepo.Append(txCtx, outcome.Entry); err != nil {
			return fmt.Errorf("failed to append tracking entry: %w", err)
		}
		return nil
	})
	if err != nil {
		if domainwf.IsStateConflict(err) {
			e.logInfo("Concurrent transition lost", "case_id", caseID, "trigger", cmd.Trigger, "error", err)
		} else {
			e.logError("Transition failed", "case_id", caseID, "trigger", cmd.Trigger, "error", err)
		}
		return nil, err
	}

	e.logInfo("Return case transitioned",
		"case_id", caseID,
		"return_number", outcome.Case.ReturnNumber,
		"trigger", cmd.Trigger,
		"from", outcome.Previous,
		"to", outcome.Case.Status,
	)

	e.emit(ctx, outcome.Case, outcome.Events)
	return outcome.Case, nil
}

func (e *engineImpl) currentStatus(ctx context.Context, caseID int64, fallback domainwf.State) domainwf.State {
	rc, err := e.caseRepo.GetByID(ctx, caseID)
	if err != nil || rc == nil {
		return fallback
	}
	return rc.Status
}

// emit is fire-and-forget; dispatch never affects the committed transition
func (e *engineImpl) emit(ctx context.Context, rc *entity.ReturnCase, types []event.Type) {
	if e.dispatcher == nil || len(types) == 0 {
		return
	}

	bundle := buildBundle(rc, e.returnURLBase)
	correlationID := uuid.NewString()
	events := make([]*event.Event, 0, len(types))
	for _, t := range types {
		events = append(events, event.NewEventWithCorrelation(t, rc.ID, rc.ReturnNumber, bundle, rc.UpdatedAt, correlationID))
	}
	e.dispatcher.Emit(ctx, events...)
}

func (e *engineImpl) Approve(ctx context.Context, caseID int64, actor Actor) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerApprove, Actor: actor})
}

func (e *engineImpl) Reject(ctx context.Context, caseID int64, actor Actor, reason string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerReject, Actor: actor, RejectionReason: reason})
}

func (e *engineImpl) Cancel(ctx context.Context, caseID int64, actor Actor, reason string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerCancel, Actor: actor, CancellationReason: reason})
}

func (e *engineImpl) SchedulePickup(ctx context.Context, caseID int64, actor Actor, pickupDate time.Time, carrier string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{
		Trigger:     domainwf.TriggerSchedulePickup,
		Actor:       actor,
		PickupDate:  &pickupDate,
		CarrierName: carrier,
	})
}

func (e *engineImpl) MarkInTransit(ctx context.Context, caseID int64, actor Actor, location string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerMarkInTransit, Actor: actor, Location: location})
}

func (e *engineImpl) MarkPickedUp(ctx context.Context, caseID int64, actor Actor, awbNumber string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerConfirmPickup, Actor: actor, AWBNumber: awbNumber})
}

func (e *engineImpl) MarkReceived(ctx context.Context, caseID int64, actor Actor, location string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerReceive, Actor: actor, Location: location})
}

func (e *engineImpl) StartInspection(ctx context.Context, caseID int64, actor Actor) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerStartInspection, Actor: actor})
}

func (e *engineImpl) PassInspection(ctx context.Context, caseID int64, actor Actor, notes string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerPassInspection, Actor: actor, InspectionNotes: notes})
}

func (e *engineImpl) FailInspection(ctx context.Context, caseID int64, actor Actor, notes string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerFailInspection, Actor: actor, InspectionNotes: notes})
}

func (e *engineImpl) InitiateRefund(ctx context.Context, caseID int64, actor Actor, method entity.RefundMethod) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerInitiateRefund, Actor: actor, RefundMethod: method})
}

func (e *engineImpl) CompleteRefund(ctx context.Context, caseID int64, actor Actor, reference string) (*entity.ReturnCase, error) {
	return e.Apply(ctx, caseID, Command{Trigger: domainwf.TriggerCompleteRefund, Actor: actor, RefundReference: reference})
}

// GetCase returns a case by ID
func (e *engineImpl) GetCase(ctx context.Context, caseID int64) (*entity.ReturnCase, error) {
	rc, err := e.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load return case %d: %w", caseID, err)
	}
	return rc, nil
}

// Renotify rebuilds an event from the case's current fields and runs its
// handlers synchronously. The case must have passed through a state that
// emits the event.
func (e *engineImpl) Renotify(ctx context.Context, caseID int64, eventType event.Type) error {
	if e.dispatcher == nil {
		return errors.New("no event dispatcher configured")
	}
	if !eventType.IsValid() {
		return domainwf.NewValidationError("event_type", fmt.Sprintf("unknown event type %q", eventType))
	}

	rc, err := e.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	entries, err := e.Tracking(ctx, caseID)
	if err != nil {
		return err
	}

	reached := false
	for _, entry := range entries {
		if slices.Contains(eventTypesFor(entry.Status), eventType) {
			reached = true
			break
		}
	}
	if !reached {
		return domainwf.NewValidationError("event_type",
			fmt.Sprintf("case %s never emitted %s", rc.ReturnNumber, eventType))
	}

	evt := event.NewEvent(eventType, rc.ID, rc.ReturnNumber, buildBundle(rc, e.returnURLBase), e.now())
	e.logInfo("Renotifying", "case_id", rc.ID, "event_type", eventType, "event_id", evt.ID)
	return e.dispatcher.Deliver(ctx, evt)
}

// GetCaseByNumber returns a case by its human-facing return number
func (e *engineImpl) GetCaseByNumber(ctx context.Context, returnNumber string) (*entity.ReturnCase, error) {
	rc, err := e.caseRepo.GetByReturnNumber(ctx, returnNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load return case %s: %w", returnNumber, err)
	}
	return rc, nil
}

// Tracking returns the case's ledger
func (e *engineImpl) Tracking(ctx context.Context, caseID int64) ([]*entity.TrackingEntry, error) {
	if _, err := e.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	entries, err := e.trackingRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking entries: %w", err)
	}
	return entries, nil
}

func (e *engineImpl) validateRequest(req RequestInput) error {
	if err := e.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domainwf.NewValidationError(fe.Field(), fmt.Sprintf("failed %q check", fe.Tag()))
		}
		return domainwf.NewValidationError("request", err.Error())
	}
	if !req.ReturnType.IsValid() {
		return domainwf.NewValidationError("return_type", "unknown return type")
	}
	if !req.Reason.IsValid() {
		return domainwf.NewValidationError("reason", "unknown return reason")
	}
	if req.Actor.Type != "" && !req.Actor.Type.IsValid() {
		return domainwf.NewValidationError("actor.type", "unknown actor type")
	}
	return nil
}

// newReturnNumber builds RET-YYYYMMDD-XXXXXXXX
func newReturnNumber(at time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("RET-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(id[:8]))
}

func (e *engineImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}

func (e *engineImpl) logError(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, keysAndValues...)
	}
}
