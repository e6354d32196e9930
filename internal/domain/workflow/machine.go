package workflow

// StateMachine answers transition questions from the state it was built at.
// Stored cases are the source of truth, so it never moves on its own.
type StateMachine interface {
	// Target returns the state the trigger leads to
	Target(trigger Trigger) (State, error)

	// PermittedTriggers returns all triggers accepted from the state
	PermittedTriggers() []Trigger
}

// Transition is one row of a configured transition table
type Transition struct {
	From    State
	Trigger Trigger
	To      State
}
