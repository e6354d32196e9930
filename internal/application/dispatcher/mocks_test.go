package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu      sync.Mutex
	entries []map[string]interface{}
}

func (m *mockLogger) log(level, msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := map[string]interface{}{"msg": msg, "level": level}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		entry[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	m.entries = append(m.entries, entry)
}

func (m *mockLogger) Debug(msg string, kv ...interface{}) { m.log("debug", msg, kv...) }
func (m *mockLogger) Info(msg string, kv ...interface{})  { m.log("info", msg, kv...) }
func (m *mockLogger) Warn(msg string, kv ...interface{})  { m.log("warn", msg, kv...) }
func (m *mockLogger) Error(msg string, kv ...interface{}) { m.log("error", msg, kv...) }

func (m *mockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e["level"] == level {
			n++
		}
	}
	return n
}

func (m *mockLogger) Has(level, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e["level"] == level && e["msg"] == msg {
			return true
		}
	}
	return false
}

// staticRoutes implements RouteResolver
type staticRoutes map[string][]notification.Route

func (s staticRoutes) Lookup(code string) []notification.Route {
	return s[code]
}

// mockSender implements port.ChannelSender with scripted results
type mockSender struct {
	channel notification.Channel

	mu      sync.Mutex
	results []error
	calls   []sentCall
	block   chan struct{}
}

type sentCall struct {
	msg *notification.RenderedMessage
	to  port.Recipient
	key string
}

func (m *mockSender) Channel() notification.Channel { return m.channel }

func (m *mockSender) Send(ctx context.Context, msg *notification.RenderedMessage, to port.Recipient, key string) (*port.DeliveryReceipt, error) {
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sentCall{msg: msg, to: to, key: key})

	var err error
	if len(m.results) > 0 {
		err = m.results[0]
		m.results = m.results[1:]
	}
	if err != nil {
		return nil, err
	}
	return &port.DeliveryReceipt{ProviderRef: fmt.Sprintf("%s-%d", m.channel, len(m.calls)), AcceptedAt: time.Now()}, nil
}

func (m *mockSender) Calls() []sentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCall(nil), m.calls...)
}

// mockDeliveryRepo implements port.DeliveryRepository
type mockDeliveryRepo struct {
	mu      sync.Mutex
	records []entity.NotificationDelivery
}

func (m *mockDeliveryRepo) Record(_ context.Context, d *entity.NotificationDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *d)
	return nil
}

func (m *mockDeliveryRepo) ListFailures(context.Context, port.DeliveryFilter) ([]*entity.NotificationDelivery, error) {
	return nil, nil
}

func (m *mockDeliveryRepo) ListByCase(context.Context, int64) ([]*entity.NotificationDelivery, error) {
	return nil, nil
}

func (m *mockDeliveryRepo) ByChannel(ch notification.Channel) []entity.NotificationDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.NotificationDelivery
	for _, r := range m.records {
		if r.Channel == ch.String() {
			out = append(out, r)
		}
	}
	return out
}

// memoryGuard implements port.DeliveryGuard
type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]string
}

func (g *memoryGuard) Seen(_ context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref, ok := g.keys[key]
	return ref, ok, nil
}

func (g *memoryGuard) Remember(_ context.Context, key, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = make(map[string]string)
	}
	g.keys[key] = ref
	return nil
}

// mockAlerter implements port.AlertNotifier
type mockAlerter struct {
	mu     sync.Mutex
	alerts []port.FailureAlert
}

func (m *mockAlerter) NotifyFailure(_ context.Context, a port.FailureAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }
