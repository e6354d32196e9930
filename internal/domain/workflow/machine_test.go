package workflow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateRequested, false},
		{StateApproved, false},
		{StatePickupScheduled, false},
		{StateInTransit, false},
		{StatePickedUp, false},
		{StateReceived, false},
		{StateInspecting, false},
		{StateInspectionPassed, false},
		{StateRefundInitiated, false},
		{StateRejected, true},
		{StateCancelled, true},
		{StateInspectionFailed, true},
		{StateRefundCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"initial state", StateRequested, true},
		{"terminal state", StateRefundCompleted, true},
		{"upper case is not a state", State("REQUESTED"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTrigger_IsValid(t *testing.T) {
	if !TriggerPassInspection.IsValid() {
		t.Error("TriggerPassInspection should be valid")
	}
	if Trigger("refund_everything").IsValid() {
		t.Error("unknown trigger should not be valid")
	}
	if got := TriggerApprove.String(); got != "approve" {
		t.Errorf("Trigger.String() = %v, want %v", got, "approve")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateRequested)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	config2 := builder.Configure(StateRequested)
	if config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanics(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"invalid state", State("INVALID")},
		{"terminal state", StateRefundCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Configure(%s) should panic", tt.state)
				}
			}()
			NewBuilder().Configure(tt.state)
		})
	}
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateConfiguration_PermitPanicsOnConflictingTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic when a trigger is re-pointed to another state")
		}
	}()

	NewBuilder().Configure(StateRequested).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerApprove, StateRejected)
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateRequested).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	machine := builder.Build(StateRequested)

	tests := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerApprove, StateApproved},
		{TriggerReject, StateRejected},
	}
	for _, tt := range tests {
		to, err := machine.Target(tt.trigger)
		if err != nil {
			t.Fatalf("Target(%s) failed: %v", tt.trigger, err)
		}
		if to != tt.want {
			t.Errorf("Target(%s) = %v, want %v", tt.trigger, to, tt.want)
		}
	}
}

func TestStateMachine_Target_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateRequested).
		Permit(TriggerApprove, StateApproved)

	_, err := builder.Build(StateRequested).Target(TriggerReceive)
	if err == nil {
		t.Fatal("Target() should fail for invalid transition")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Target() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_Target_NoConfiguration(t *testing.T) {
	_, err := NewBuilder().Build(StateReceived).Target(TriggerStartInspection)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Target() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateRequested).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerCancel, StateCancelled)

	triggers := builder.Build(StateRequested).PermittedTriggers()

	want := []Trigger{TriggerApprove, TriggerCancel, TriggerReject}
	if len(triggers) != len(want) {
		t.Fatalf("PermittedTriggers() returned %d triggers, want %d", len(triggers), len(want))
	}
	for i := range want {
		if triggers[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, triggers[i], want[i])
		}
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateRequested).
		Permit(TriggerApprove, StateApproved)

	machine := builder.Build(StateRequested)

	// Later configuration must not leak into machines already built
	builder.Configure(StateRequested).Permit(TriggerCancel, StateCancelled)

	if _, err := machine.Target(TriggerCancel); err == nil {
		t.Error("machine should not see transitions configured after Build()")
	}
	if _, err := builder.Build(StateRequested).Target(TriggerCancel); err != nil {
		t.Errorf("a new machine should see the added transition: %v", err)
	}
}

func TestBuilder_Table(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateApproved).
		Permit(TriggerSchedulePickup, StatePickupScheduled)
	builder.Configure(StateRequested).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerApprove, StateApproved)

	table := builder.Table()

	want := []Transition{
		{From: StateRequested, Trigger: TriggerApprove, To: StateApproved},
		{From: StateRequested, Trigger: TriggerReject, To: StateRejected},
		{From: StateApproved, Trigger: TriggerSchedulePickup, To: StatePickupScheduled},
	}
	if len(table) != len(want) {
		t.Fatalf("Table() returned %d rows, want %d", len(table), len(want))
	}
	for i := range want {
		if table[i] != want[i] {
			t.Errorf("Table()[%d] = %+v, want %+v", i, table[i], want[i])
		}
	}
}

func TestErrors_Unwrap(t *testing.T) {
	conflict := &ConflictError{CaseID: 7, Trigger: TriggerApprove, Current: StateRejected}
	if !IsStateConflict(conflict) {
		t.Error("ConflictError should match ErrStateConflict")
	}
	if IsValidation(conflict) {
		t.Error("ConflictError should not match ErrValidation")
	}

	validation := NewValidationError("rejection_reason", "is required")
	if !IsValidation(validation) {
		t.Error("ValidationError should match ErrValidation")
	}

	var ve *ValidationError
	if !errors.As(validation, &ve) || ve.Field != "rejection_reason" {
		t.Errorf("errors.As() did not recover field, got %v", validation)
	}
}
