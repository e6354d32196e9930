package workflow

// State represents a return case status in the return lifecycle
type State string

const (
	StateRequested        State = "requested"
	StateApproved         State = "approved"
	StateRejected         State = "rejected"
	StateCancelled        State = "cancelled"
	StatePickupScheduled  State = "pickup_scheduled"
	StateInTransit        State = "in_transit"
	StatePickedUp         State = "picked_up"
	StateReceived         State = "received"
	StateInspecting       State = "inspecting"
	StateInspectionPassed State = "inspection_passed"
	StateInspectionFailed State = "inspection_failed"
	StateRefundInitiated  State = "refund_initiated"
	StateRefundCompleted  State = "refund_completed"
)

// AllStates lists every state in lifecycle order
var AllStates = []State{
	StateRequested,
	StateApproved,
	StateRejected,
	StateCancelled,
	StatePickupScheduled,
	StateInTransit,
	StatePickedUp,
	StateReceived,
	StateInspecting,
	StateInspectionPassed,
	StateInspectionFailed,
	StateRefundInitiated,
	StateRefundCompleted,
}

var validStates = func() map[State]bool {
	m := make(map[State]bool, len(AllStates))
	for _, s := range AllStates {
		m[s] = true
	}
	return m
}()

var terminalStates = map[State]bool{
	StateRejected:         true,
	StateCancelled:        true,
	StateInspectionFailed: true,
	StateRefundCompleted:  true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid return state
func (s State) IsValid() bool {
	return validStates[s]
}
