package workflow

import (
	"strings"
	"time"

	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// Outcome is the pure result of applying a command to a case
type Outcome struct {
	Previous domainwf.State
	Case     *entity.ReturnCase
	Entry    *entity.TrackingEntry
	Events   []event.Type
}

var defaultDescriptions = map[domainwf.State]string{
	domainwf.StateRequested:        "Return requested",
	domainwf.StateApproved:         "Return approved",
	domainwf.StateRejected:         "Return rejected",
	domainwf.StateCancelled:        "Return cancelled",
	domainwf.StatePickupScheduled:  "Pickup scheduled",
	domainwf.StateInTransit:        "Courier in transit",
	domainwf.StatePickedUp:         "Item picked up",
	domainwf.StateReceived:         "Item received at warehouse",
	domainwf.StateInspecting:       "Inspection started",
	domainwf.StateInspectionPassed: "Inspection passed",
	domainwf.StateInspectionFailed: "Inspection failed",
	domainwf.StateRefundInitiated:  "Refund initiated",
	domainwf.StateRefundCompleted:  "Refund completed",
}

// ApplyTransition derives the next version of a case, its ledger entry and
// the events to emit. It does not touch rc and performs no I/O. All
// timestamps come from now, clamped so they never run backwards.
func ApplyTransition(rc *entity.ReturnCase, cmd Command, now time.Time) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	to, err := BuildReturnStateMachine(rc.Status).Target(cmd.Trigger)
	if err != nil {
		return nil, &domainwf.ConflictError{CaseID: rc.ID, Trigger: cmd.Trigger, Current: rc.Status}
	}

	at := stampTime(rc, now)
	next := rc.Clone()
	next.Status = to
	next.UpdatedAt = at

	if slot := next.Milestones.For(to); slot != nil && *slot == nil {
		stamp := at
		*slot = &stamp
	}

	switch cmd.Trigger {
	case domainwf.TriggerReject:
		next.RejectionReason = strings.TrimSpace(cmd.RejectionReason)
	case domainwf.TriggerCancel:
		next.CancellationReason = strings.TrimSpace(cmd.CancellationReason)
	case domainwf.TriggerSchedulePickup:
		pickup := *cmd.PickupDate
		next.PickupDate = &pickup
		if cmd.CarrierName != "" {
			next.CarrierName = cmd.CarrierName
		}
	case domainwf.TriggerMarkInTransit:
		if cmd.CarrierName != "" {
			next.CarrierName = cmd.CarrierName
		}
	case domainwf.TriggerConfirmPickup:
		next.AWBNumber = strings.TrimSpace(cmd.AWBNumber)
		if cmd.CarrierName != "" {
			next.CarrierName = cmd.CarrierName
		}
	case domainwf.TriggerPassInspection, domainwf.TriggerFailInspection:
		passed := cmd.Trigger == domainwf.TriggerPassInspection
		next.InspectionPassed = &passed
		next.InspectionNotes = strings.TrimSpace(cmd.InspectionNotes)
	case domainwf.TriggerInitiateRefund:
		next.RefundMethod = cmd.RefundMethod
	case domainwf.TriggerCompleteRefund:
		next.RefundReference = strings.TrimSpace(cmd.RefundReference)
	}

	return &Outcome{
		Previous: rc.Status,
		Case:     next,
		Entry:    newEntry(next, cmd, at),
		Events:   eventTypesFor(to),
	}, nil
}

// stampTime keeps milestones non-decreasing even if the clock steps back
func stampTime(rc *entity.ReturnCase, now time.Time) time.Time {
	floor := rc.UpdatedAt
	if latest := rc.Milestones.Latest(); latest != nil && latest.After(floor) {
		floor = *latest
	}
	if now.Before(floor) {
		return floor
	}
	return now
}

func newEntry(rc *entity.ReturnCase, cmd Command, at time.Time) *entity.TrackingEntry {
	actor := cmd.actor()
	desc := strings.TrimSpace(cmd.Description)
	if desc == "" {
		desc = defaultDescriptions[rc.Status]
	}
	return &entity.TrackingEntry{
		CaseID:      rc.ID,
		Status:      rc.Status,
		Description: desc,
		Location:    cmd.Location,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		Timestamp:   at,
	}
}
