package workflow

import (
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

func configureReturnTransitions(builder domainwf.StateMachineBuilder) {
	// REQUESTED
	builder.Configure(domainwf.StateRequested).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// APPROVED
	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerSchedulePickup, domainwf.StatePickupScheduled)

	// Logistics leg is strictly sequential
	builder.Configure(domainwf.StatePickupScheduled).
		Permit(domainwf.TriggerMarkInTransit, domainwf.StateInTransit)
	builder.Configure(domainwf.StateInTransit).
		Permit(domainwf.TriggerConfirmPickup, domainwf.StatePickedUp)
	builder.Configure(domainwf.StatePickedUp).
		Permit(domainwf.TriggerReceive, domainwf.StateReceived)

	// Inspection
	builder.Configure(domainwf.StateReceived).
		Permit(domainwf.TriggerStartInspection, domainwf.StateInspecting)
	builder.Configure(domainwf.StateInspecting).
		Permit(domainwf.TriggerPassInspection, domainwf.StateInspectionPassed).
		Permit(domainwf.TriggerFailInspection, domainwf.StateInspectionFailed)

	// Refund
	builder.Configure(domainwf.StateInspectionPassed).
		Permit(domainwf.TriggerInitiateRefund, domainwf.StateRefundInitiated)
	builder.Configure(domainwf.StateRefundInitiated).
		Permit(domainwf.TriggerCompleteRefund, domainwf.StateRefundCompleted)

	// REJECTED, CANCELLED, INSPECTION_FAILED and REFUND_COMPLETED are terminal
}

var returnBuilder = func() domainwf.StateMachineBuilder {
	b := domainwf.NewBuilder()
	configureReturnTransitions(b)
	return b
}()

// BuildReturnStateMachine creates a state machine configured for the return workflow
func BuildReturnStateMachine(initialState domainwf.State) domainwf.StateMachine {
	return returnBuilder.Build(initialState)
}

// TransitionTable lists every permitted transition of the return workflow
func TransitionTable() []domainwf.Transition {
	return returnBuilder.Table()
}

// PermittedTriggers lists the triggers accepted from state
func PermittedTriggers(state domainwf.State) []domainwf.Trigger {
	if !state.IsValid() {
		return nil
	}
	return BuildReturnStateMachine(state).PermittedTriggers()
}

var eventByState = map[domainwf.State]event.Type{
	domainwf.StateRequested:        event.TypeReturnRequested,
	domainwf.StateApproved:         event.TypeReturnApproved,
	domainwf.StateRejected:         event.TypeReturnRejected,
	domainwf.StateCancelled:        event.TypeReturnCancelled,
	domainwf.StatePickupScheduled:  event.TypeReturnPickupScheduled,
	domainwf.StateInTransit:        event.TypeReturnInTransit,
	domainwf.StatePickedUp:         event.TypeReturnPickedUp,
	domainwf.StateReceived:         event.TypeReturnReceived,
	domainwf.StateInspecting:       event.TypeReturnInspecting,
	domainwf.StateInspectionPassed: event.TypeReturnInspectionPassed,
	domainwf.StateInspectionFailed: event.TypeReturnInspectionFailed,
	domainwf.StateRefundInitiated:  event.TypeReturnRefundInitiated,
	domainwf.StateRefundCompleted:  event.TypeReturnRefundCompleted,
}

// eventTypesFor returns the events emitted on entering state
func eventTypesFor(state domainwf.State) []event.Type {
	t, ok := eventByState[state]
	if !ok {
		return nil
	}
	if state == domainwf.StateRequested {
		return []event.Type{t, event.TypeVendorReturnRequested}
	}
	return []event.Type{t}
}
