package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/marketplace-returns/pkg/database"
)

type testDB struct {
	tx        *sqlite.TxManager
	cases     port.ReturnCaseRepository
	tracking  port.TrackingRepository
	templates port.TemplateRepository
	triggers  port.TriggerRepository
	delivery  port.DeliveryRepository
	orders    *OrderLineRepository
}

func setupDB(t *testing.T) *testDB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: database.MemoryPath}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())

	return &testDB{
		tx:        sqlite.NewTxManager(db.DB, logger),
		cases:     NewReturnCaseRepository(db.DB, logger),
		tracking:  NewTrackingRepository(db.DB, logger),
		templates: NewTemplateRepository(db.DB, logger),
		triggers:  NewTriggerRepository(db.DB, logger),
		delivery:  NewDeliveryRepository(db.DB, logger),
		orders:    NewOrderLineRepository(db.DB, logger),
	}
}

var created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleLine() *port.OrderLine {
	return &port.OrderLine{
		OrderID:       77,
		OrderNumber:   "ORD-1001",
		ItemID:        501,
		ProductID:     9,
		ProductName:   "Trail Shoe",
		Quantity:      3,
		LineTotal:     decimal.RequireFromString("149.70"),
		Currency:      "USD",
		CustomerID:    11,
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		VendorID:      21,
		VendorName:    "Acme Outdoor",
		VendorEmail:   "returns@acme.example",
	}
}

func sampleCase(number string, qty int) *entity.ReturnCase {
	return &entity.ReturnCase{
		ReturnNumber:  number,
		Status:        workflow.StateRequested,
		OrderID:       77,
		OrderNumber:   "ORD-1001",
		OrderItemID:   501,
		ProductID:     9,
		ProductName:   "Trail Shoe",
		CustomerID:    11,
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		VendorID:      21,
		VendorName:    "Acme Outdoor",
		ReturnType:    entity.ReturnTypeRefund,
		Reason:        entity.ReasonDamaged,
		Quantity:      qty,
		RefundAmount:  decimal.RequireFromString("49.90"),
		LineTotal:     decimal.RequireFromString("149.70"),
		Currency:      "USD",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestReturnCaseRepository_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	rc := sampleCase("RET-20260301-00000001", 1)
	require.NoError(t, db.cases.Create(ctx, rc))
	require.NotZero(t, rc.ID)

	got, err := db.cases.GetByID(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateRequested, got.Status)
	assert.Equal(t, "Trail Shoe", got.ProductName)
	assert.True(t, got.RefundAmount.Equal(rc.RefundAmount))
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Nil(t, got.PickupDate)
	assert.Nil(t, got.InspectionPassed)
	assert.Nil(t, got.Milestones.Latest())

	byNumber, err := db.cases.GetByReturnNumber(ctx, rc.ReturnNumber)
	require.NoError(t, err)
	assert.Equal(t, rc.ID, byNumber.ID)

	_, err = db.cases.GetByID(ctx, 999)
	assert.ErrorIs(t, err, port.ErrNotFound)
	_, err = db.cases.GetByReturnNumber(ctx, "RET-NONE")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestReturnCaseRepository_CompareAndSetStatus(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	rc := sampleCase("RET-20260301-00000002", 1)
	require.NoError(t, db.cases.Create(ctx, rc))

	approvedAt := created.Add(time.Hour)
	pickup := created.Add(48 * time.Hour)
	passed := true
	next := rc.Clone()
	next.Status = workflow.StateApproved
	next.Milestones.ApprovedAt = &approvedAt
	next.PickupDate = &pickup
	next.InspectionPassed = &passed
	next.UpdatedAt = approvedAt

	ok, err := db.cases.CompareAndSetStatus(ctx, rc.ID, workflow.StateRequested, next)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second writer that read the old status loses
	loser := rc.Clone()
	loser.Status = workflow.StateRejected
	ok, err = db.cases.CompareAndSetStatus(ctx, rc.ID, workflow.StateRequested, loser)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.cases.GetByID(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateApproved, got.Status)
	require.NotNil(t, got.Milestones.ApprovedAt)
	assert.True(t, got.Milestones.ApprovedAt.Equal(approvedAt))
	require.NotNil(t, got.PickupDate)
	assert.True(t, got.PickupDate.Equal(pickup))
	require.NotNil(t, got.InspectionPassed)
	assert.True(t, *got.InspectionPassed)
	assert.Nil(t, got.Milestones.RejectedAt)
}

func TestTrackingRepository_AppendAndList(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	rc := sampleCase("RET-20260301-00000003", 1)
	require.NoError(t, db.cases.Create(ctx, rc))

	states := []workflow.State{workflow.StateRequested, workflow.StateApproved, workflow.StatePickupScheduled}
	for i, s := range states {
		e := &entity.TrackingEntry{
			CaseID:      rc.ID,
			Status:      s,
			Description: string(s),
			ActorType:   entity.ActorVendor,
			ActorID:     "v-1",
			// identical timestamps must still list in insertion order
			Timestamp: created,
		}
		require.NoError(t, db.tracking.Append(ctx, e))
		assert.Equal(t, int64(i+1), e.ID)
	}

	entries, err := db.tracking.ListByCase(ctx, rc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, states[i], e.Status)
		assert.Equal(t, entity.ActorVendor, e.ActorType)
	}

	empty, err := db.tracking.ListByCase(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTransactionRollback(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	rc := sampleCase("RET-20260301-00000004", 1)
	require.NoError(t, db.cases.Create(ctx, rc))

	err := db.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		next := rc.Clone()
		next.Status = workflow.StateApproved
		ok, err := db.cases.CompareAndSetStatus(txCtx, rc.ID, workflow.StateRequested, next)
		require.NoError(t, err)
		require.True(t, ok)
		// unknown case violates the foreign key
		return db.tracking.Append(txCtx, &entity.TrackingEntry{
			CaseID: 9999, Status: workflow.StateApproved, Description: "x",
			ActorType: entity.ActorSystem, Timestamp: created,
		})
	})
	require.Error(t, err)

	got, err := db.cases.GetByID(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateRequested, got.Status)
}

func TestTemplateRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	email := &notification.Template{
		Code:      "customer_return_approved",
		Channel:   notification.ChannelEmail,
		Variables: []string{"customer_name", "return_url"},
		Active:    true,
		Content:   notification.EmailContent{Subject: "Approved", Body: "Hi {{customer_name}} {{return_url}}"},
		UpdatedAt: created,
	}
	wa := &notification.Template{
		Code:      "wa_return_approved",
		Channel:   notification.ChannelWhatsApp,
		Variables: []string{"customer_name"},
		Active:    false,
		Content: notification.StructuredContent{
			Header:  "Update",
			Body:    "Hi {{1}}",
			Buttons: []notification.Button{{Text: "Track", URL: "https://x/{{1}}"}},
		},
		UpdatedAt: created,
	}
	require.NoError(t, db.templates.Upsert(ctx, email))
	require.NoError(t, db.templates.Upsert(ctx, wa))

	got, err := db.templates.GetByCode(ctx, "wa_return_approved")
	require.NoError(t, err)
	assert.Equal(t, wa.Content, got.Content)
	assert.False(t, got.Active)

	active, err := db.templates.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, email.Content, active[0].Content)
	assert.Equal(t, email.Variables, active[0].Variables)

	wa.Active = true
	require.NoError(t, db.templates.Upsert(ctx, wa))
	active, err = db.templates.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = db.templates.GetByCode(ctx, "nope")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestTriggerRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	trig := &notification.EventTrigger{
		EventCode: "return.approved",
		Category:  "return",
		Channels: map[notification.Channel]notification.ChannelBinding{
			notification.ChannelEmail:    {Enabled: true, TemplateCode: "customer_return_approved"},
			notification.ChannelWhatsApp: {Enabled: false},
		},
		UpdatedAt: created,
	}
	require.NoError(t, db.triggers.Upsert(ctx, trig))
	require.NoError(t, db.triggers.Upsert(ctx, &notification.EventTrigger{EventCode: "return.rejected", Category: "return", UpdatedAt: created}))

	got, err := db.triggers.GetByCode(ctx, "return.approved")
	require.NoError(t, err)
	assert.Equal(t, trig.Channels, got.Channels)
	assert.Equal(t, []notification.Channel{notification.ChannelEmail}, got.UsableChannels())

	all, err := db.triggers.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "return.approved", all[0].EventCode)
	assert.Empty(t, all[1].UsableChannels())

	_, err = db.triggers.GetByCode(ctx, "return.unknown")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestDeliveryRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	record := func(status string, caseID int64, at time.Time) {
		require.NoError(t, db.delivery.Record(ctx, &entity.NotificationDelivery{
			EventID:        "evt",
			EventCode:      "return.approved",
			CaseID:         caseID,
			Channel:        "email",
			IdempotencyKey: "return.approved:1:email",
			Status:         status,
			Attempts:       1,
			CreatedAt:      at,
		}))
	}
	record(entity.DeliveryStatusSent, 1, created)
	record(entity.DeliveryStatusFailed, 1, created.Add(time.Minute))
	record(entity.DeliveryStatusRenderFailed, 2, created.Add(2*time.Minute))
	record(entity.DeliveryStatusFailed, 2, created.Add(-time.Hour))

	failures, err := db.delivery.ListFailures(ctx, port.DeliveryFilter{})
	require.NoError(t, err)
	require.Len(t, failures, 3)
	assert.Equal(t, entity.DeliveryStatusRenderFailed, failures[0].Status, "newest first")

	recent, err := db.delivery.ListFailures(ctx, port.DeliveryFilter{Since: created, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := db.delivery.ListFailures(ctx, port.DeliveryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	byCase, err := db.delivery.ListByCase(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byCase, 2)
	assert.Equal(t, entity.DeliveryStatusSent, byCase[0].Status)
}

func TestOrderLineRepository_ReturnableQuantity(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, db.orders.SaveOrderLine(ctx, sampleLine()))

	line, err := db.orders.GetOrderLine(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, 3, line.ReturnableQuantity)
	assert.True(t, line.LineTotal.Equal(decimal.RequireFromString("149.7")))
	assert.Equal(t, "returns@acme.example", line.VendorEmail)

	open := sampleCase("RET-20260301-00000005", 2)
	require.NoError(t, db.cases.Create(ctx, open))
	cancelled := sampleCase("RET-20260301-00000006", 1)
	cancelled.Status = workflow.StateCancelled
	require.NoError(t, db.cases.Create(ctx, cancelled))

	line, err = db.orders.GetOrderLine(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, 1, line.ReturnableQuantity, "cancelled returns give quantity back")

	_, err = db.orders.GetOrderLine(ctx, 404)
	assert.ErrorIs(t, err, port.ErrNotFound)
}
