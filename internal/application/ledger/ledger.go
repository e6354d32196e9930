// Package ledger reads the append-only tracking ledger of return cases and
// derives reporting views from it. Nothing here writes; entries are appended
// by the workflow engine inside its transition transaction.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// StateDuration is the time a case spent in one state
type StateDuration struct {
	State     workflow.State `json:"status"`
	EnteredAt time.Time      `json:"entered_at"`
	ExitedAt  *time.Time     `json:"exited_at,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`

	// Current is set for the state the case is still in
	Current bool `json:"current"`
}

// Timeline is a case together with its ledger and derived durations
type Timeline struct {
	Case      *entity.ReturnCase      `json:"case"`
	Entries   []*entity.TrackingEntry `json:"entries"`
	Durations []StateDuration         `json:"durations"`
}

// Reader exposes read-only ledger queries
type Reader struct {
	cases    port.ReturnCaseRepository
	tracking port.TrackingRepository
	now      func() time.Time
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithClock overrides the time used to measure the current state
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) {
		r.now = now
	}
}

// NewReader creates a ledger reader
func NewReader(cases port.ReturnCaseRepository, tracking port.TrackingRepository, opts ...ReaderOption) *Reader {
	r := &Reader{cases: cases, tracking: tracking, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entries returns the case's ledger in insertion order
func (r *Reader) Entries(ctx context.Context, caseID int64) ([]*entity.TrackingEntry, error) {
	if _, err := r.cases.GetByID(ctx, caseID); err != nil {
		return nil, fmt.Errorf("failed to load return case %d: %w", caseID, err)
	}
	entries, err := r.tracking.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking entries for case %d: %w", caseID, err)
	}
	return entries, nil
}

// StateDurations derives how long the case stayed in each state
func (r *Reader) StateDurations(ctx context.Context, caseID int64) ([]StateDuration, error) {
	entries, err := r.Entries(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return Durations(entries, r.now()), nil
}

// Timeline loads the case, its entries and durations in one call
func (r *Reader) Timeline(ctx context.Context, caseID int64) (*Timeline, error) {
	rc, err := r.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load return case %d: %w", caseID, err)
	}
	entries, err := r.tracking.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking entries for case %d: %w", caseID, err)
	}
	return &Timeline{
		Case:      rc,
		Entries:   entries,
		Durations: Durations(entries, r.now()),
	}, nil
}

// Durations computes state durations from ordered entries. A state is left
// when the next entry is written. The last state of an open case is measured
// up to now; a terminal state has no duration.
func Durations(entries []*entity.TrackingEntry, now time.Time) []StateDuration {
	out := make([]StateDuration, 0, len(entries))
	for i, e := range entries {
		d := StateDuration{State: e.Status, EnteredAt: e.Timestamp}

		switch {
		case i+1 < len(entries):
			exit := entries[i+1].Timestamp
			d.ExitedAt = &exit
			d.Duration = nonNegative(exit.Sub(e.Timestamp))
		case e.Status.IsTerminal():
			exit := e.Timestamp
			d.ExitedAt = &exit
		default:
			d.Current = true
			d.Duration = nonNegative(now.Sub(e.Timestamp))
		}

		out = append(out, d)
	}
	return out
}

// Total sums the durations of every state
func Total(durations []StateDuration) time.Duration {
	var total time.Duration
	for _, d := range durations {
		total += d.Duration
	}
	return total
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
