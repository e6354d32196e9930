package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerApprove         Trigger = "approve"
	TriggerReject          Trigger = "reject"
	TriggerCancel          Trigger = "cancel"
	TriggerSchedulePickup  Trigger = "schedule_pickup"
	TriggerMarkInTransit   Trigger = "mark_in_transit"
	TriggerConfirmPickup   Trigger = "confirm_pickup"
	TriggerReceive         Trigger = "receive"
	TriggerStartInspection Trigger = "start_inspection"
	TriggerPassInspection  Trigger = "pass_inspection"
	TriggerFailInspection  Trigger = "fail_inspection"
	TriggerInitiateRefund  Trigger = "initiate_refund"
	TriggerCompleteRefund  Trigger = "complete_refund"
)

// AllTriggers lists every trigger the return lifecycle understands
var AllTriggers = []Trigger{
	TriggerApprove,
	TriggerReject,
	TriggerCancel,
	TriggerSchedulePickup,
	TriggerMarkInTransit,
	TriggerConfirmPickup,
	TriggerReceive,
	TriggerStartInspection,
	TriggerPassInspection,
	TriggerFailInspection,
	TriggerInitiateRefund,
	TriggerCompleteRefund,
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is known
func (t Trigger) IsValid() bool {
	for _, known := range AllTriggers {
		if known == t {
			return true
		}
	}
	return false
}
