package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

func requestedCase() *entity.ReturnCase {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &entity.ReturnCase{
		ID:           5,
		ReturnNumber: "RET-20260301-0000ABCD",
		Status:       domainwf.StateRequested,
		RefundAmount: decimal.NewFromInt(10),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestApplyTransition_IsPure(t *testing.T) {
	rc := requestedCase()
	now := rc.CreatedAt.Add(time.Hour)
	cmd := Command{Trigger: domainwf.TriggerApprove, Description: "looks fine"}

	first, err := ApplyTransition(rc, cmd, now)
	require.NoError(t, err)
	second, err := ApplyTransition(rc, cmd, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, domainwf.StateRequested, rc.Status, "input case is untouched")
	assert.Nil(t, rc.Milestones.ApprovedAt)

	assert.Equal(t, domainwf.StateRequested, first.Previous)
	assert.Equal(t, domainwf.StateApproved, first.Case.Status)
	assert.Equal(t, now, *first.Case.Milestones.ApprovedAt)
	assert.Equal(t, "looks fine", first.Entry.Description)
	assert.Equal(t, entity.ActorSystem, first.Entry.ActorType)
	assert.Equal(t, []event.Type{event.TypeReturnApproved}, first.Events)
}

func TestApplyTransition_ClampsClock(t *testing.T) {
	rc := requestedCase()
	earlier := rc.CreatedAt.Add(-time.Hour)

	out, err := ApplyTransition(rc, Command{Trigger: domainwf.TriggerApprove}, earlier)
	require.NoError(t, err)

	assert.Equal(t, rc.UpdatedAt, out.Case.UpdatedAt)
	assert.Equal(t, rc.UpdatedAt, out.Entry.Timestamp)
}

func TestApplyTransition_Conflict(t *testing.T) {
	rc := requestedCase()

	_, err := ApplyTransition(rc, Command{Trigger: domainwf.TriggerReceive}, time.Now())

	assert.True(t, domainwf.IsStateConflict(err))
}

func TestApplyTransition_DefaultDescriptions(t *testing.T) {
	for _, state := range domainwf.AllStates {
		assert.NotEmpty(t, defaultDescriptions[state], "state %s", state)
	}
}

func TestTransitionTable(t *testing.T) {
	table := TransitionTable()
	assert.Len(t, table, 12)

	for _, row := range table {
		assert.False(t, row.From.IsTerminal(), "terminal state %s has outgoing transition", row.From)
		assert.Contains(t, eventByState, row.To)
	}
	assert.Empty(t, PermittedTriggers(domainwf.StateRefundCompleted))
	assert.Empty(t, PermittedTriggers("bogus"))
	assert.Equal(t, []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerCancel, domainwf.TriggerReject},
		PermittedTriggers(domainwf.StateRequested))
}
