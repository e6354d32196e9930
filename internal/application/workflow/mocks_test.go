package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/marketplace-returns/internal/application/dispatcher"
	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// memoryStore backs both repositories and rolls back on failed transactions
type memoryStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	cases     map[int64]*entity.ReturnCase
	entries   []*entity.TrackingEntry
	nextID    int64
	appendErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{cases: make(map[int64]*entity.ReturnCase)}
}

type mockCaseRepo struct{ s *memoryStore }

func (r *mockCaseRepo) Create(_ context.Context, rc *entity.ReturnCase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID++
	rc.ID = r.s.nextID
	r.s.cases[rc.ID] = rc.Clone()
	return nil
}

func (r *mockCaseRepo) GetByID(_ context.Context, id int64) (*entity.ReturnCase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rc, ok := r.s.cases[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return rc.Clone(), nil
}

func (r *mockCaseRepo) GetByReturnNumber(_ context.Context, number string) (*entity.ReturnCase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rc := range r.s.cases {
		if rc.ReturnNumber == number {
			return rc.Clone(), nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *mockCaseRepo) CompareAndSetStatus(_ context.Context, id int64, expected domainwf.State, updated *entity.ReturnCase) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rc, ok := r.s.cases[id]
	if !ok || rc.Status != expected {
		return false, nil
	}
	r.s.cases[id] = updated.Clone()
	return true, nil
}

type mockTrackingRepo struct{ s *memoryStore }

func (r *mockTrackingRepo) Append(_ context.Context, entry *entity.TrackingEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.appendErr != nil {
		return r.s.appendErr
	}
	cp := *entry
	cp.ID = int64(len(r.s.entries) + 1)
	r.s.entries = append(r.s.entries, &cp)
	return nil
}

func (r *mockTrackingRepo) ListByCase(_ context.Context, caseID int64) ([]*entity.TrackingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.TrackingEntry
	for _, e := range r.s.entries {
		if e.CaseID == caseID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mockTxManager serializes transactions and restores the store on error
type mockTxManager struct{ s *memoryStore }

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	savedCases := make(map[int64]*entity.ReturnCase, len(m.s.cases))
	for id, rc := range m.s.cases {
		savedCases[id] = rc.Clone()
	}
	savedEntries := append([]*entity.TrackingEntry(nil), m.s.entries...)
	savedID := m.s.nextID
	m.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.s.mu.Lock()
		m.s.cases, m.s.entries, m.s.nextID = savedCases, savedEntries, savedID
		m.s.mu.Unlock()
		return err
	}
	return nil
}

// mockOrderLines serves fixed lines. With store set, the returnable quantity
// is derived from the open cases of the line like the SQL mirror does.
type mockOrderLines struct {
	lines map[int64]*port.OrderLine
	store *memoryStore
	err   error
}

func (m *mockOrderLines) GetOrderLine(_ context.Context, id int64) (*port.OrderLine, error) {
	if m.err != nil {
		return nil, m.err
	}
	line, ok := m.lines[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	if m.store == nil {
		return line, nil
	}

	cp := *line
	cp.ReturnableQuantity = line.Quantity
	m.store.mu.Lock()
	for _, rc := range m.store.cases {
		if rc.OrderItemID == id && rc.Status != domainwf.StateRejected && rc.Status != domainwf.StateCancelled {
			cp.ReturnableQuantity -= rc.Quantity
		}
	}
	m.store.mu.Unlock()
	// widen the window between the read and the insert
	time.Sleep(5 * time.Millisecond)
	return &cp, nil
}

// mockDispatcher records emitted and synchronously delivered events
type mockDispatcher struct {
	mu        sync.Mutex
	events    []*event.Event
	delivered []*event.Event
}

func (m *mockDispatcher) Subscribe(string, dispatcher.Handler, ...event.Type) {}
func (m *mockDispatcher) Pending() int                                        { return 0 }
func (m *mockDispatcher) Close() error                                        { return nil }

func (m *mockDispatcher) Deliver(_ context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, evt)
	return nil
}

func (m *mockDispatcher) Emit(_ context.Context, events ...*event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

func (m *mockDispatcher) Events() []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*event.Event(nil), m.events...)
}

func (m *mockDispatcher) Types() []event.Type {
	var out []event.Type
	for _, e := range m.Events() {
		out = append(out, e.Type)
	}
	return out
}

// steppingClock advances by step on every call
type steppingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type testHarness struct {
	store  *memoryStore
	disp   *mockDispatcher
	orders *mockOrderLines
	engine ReturnEngine
}

const testOrderItemID = 501

func newHarness(opts ...EngineOption) *testHarness {
	store := newMemoryStore()
	disp := &mockDispatcher{}
	orders := &mockOrderLines{lines: map[int64]*port.OrderLine{
		testOrderItemID: {
			OrderID:            77,
			OrderNumber:        "ORD-1001",
			ItemID:             testOrderItemID,
			ProductID:          9,
			ProductName:        "Trail Shoe",
			Quantity:           3,
			ReturnableQuantity: 2,
			LineTotal:          decimal.RequireFromString("149.70"),
			Currency:           "USD",
			CustomerID:         11,
			CustomerName:       "Asha",
			CustomerEmail:      "asha@example.com",
			CustomerPhone:      "+15550100",
			VendorID:           21,
			VendorName:         "Acme Outdoor",
			VendorEmail:        "returns@acme.example",
		},
	}}
	clock := &steppingClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Minute}

	all := append([]EngineOption{WithDispatcher(disp), WithClock(clock.Now)}, opts...)
	engine := NewEngine(&mockCaseRepo{store}, &mockTrackingRepo{store}, &mockTxManager{store}, orders, all...)
	return &testHarness{store: store, disp: disp, orders: orders, engine: engine}
}

func validRequest() RequestInput {
	return RequestInput{
		OrderItemID:  testOrderItemID,
		CustomerID:   11,
		ReturnType:   entity.ReturnTypeRefund,
		Reason:       entity.ReasonDefective,
		Quantity:     1,
		RefundAmount: decimal.RequireFromString("49.9"),
	}
}

var errAppend = errors.New("disk full")
