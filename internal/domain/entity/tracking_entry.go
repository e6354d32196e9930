package entity

import (
	"time"

	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// TrackingEntry is one immutable fact in a return case's audit trail
type TrackingEntry struct {
	ID          int64          `json:"id"`
	CaseID      int64          `json:"case_id"`
	Status      workflow.State `json:"status"`
	Description string         `json:"description"`
	Location    string         `json:"location,omitempty"`
	ActorType   ActorType      `json:"actor_type"`
	ActorID     string         `json:"actor_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
