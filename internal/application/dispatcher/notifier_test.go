package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

func approvedEmailTemplate() *notification.Template {
	return &notification.Template{
		Code:      "customer_return_approved",
		Channel:   notification.ChannelEmail,
		Variables: []string{"customer_name", "return_number", "refund_amount", "return_url"},
		Active:    true,
		Content: notification.EmailContent{
			Subject: "Return {{return_number}} approved",
			Body:    "Hi {{customer_name}}, {{refund_amount}} is on its way: {{return_url}}",
		},
	}
}

func approvedWhatsAppTemplate() *notification.Template {
	return &notification.Template{
		Code:      "wa_return_approved",
		Channel:   notification.ChannelWhatsApp,
		Variables: []string{"customer_name", "return_number"},
		Active:    true,
		Content:   notification.StructuredContent{Body: "Hi {{1}}, return {{2}} is approved."},
	}
}

func approvedRoutes() staticRoutes {
	return staticRoutes{
		"return.approved": {
			{Channel: notification.ChannelEmail, Template: approvedEmailTemplate()},
			{Channel: notification.ChannelWhatsApp, Template: approvedWhatsAppTemplate()},
		},
	}
}

func approvedEvent(payload map[string]string) *event.Event {
	return event.NewEvent(event.TypeReturnApproved, 42, "RET-20260301-ABCDEF12", payload, time.Now())
}

func fullPayload() map[string]string {
	return map[string]string{
		"customer_name":  "Asha",
		"customer_email": "asha@example.com",
		"customer_phone": "+15550100",
		"return_number":  "RET-20260301-ABCDEF12",
		"refund_amount":  "49.90",
		"return_url":     "https://shop.example/r/RET-20260301-ABCDEF12",
	}
}

func TestNotifier_DeliversEveryChannel(t *testing.T) {
	email := &mockSender{channel: notification.ChannelEmail}
	wa := &mockSender{channel: notification.ChannelWhatsApp}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email, wa}, WithSleep(noSleep))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	require.Len(t, email.Calls(), 1)
	assert.Equal(t, "asha@example.com", email.Calls()[0].to.Address)
	assert.Equal(t, "return.approved:42:email", email.Calls()[0].key)
	assert.Equal(t, "Hi Asha, 49.90 is on its way: https://shop.example/r/RET-20260301-ABCDEF12", email.Calls()[0].msg.Body)

	require.Len(t, wa.Calls(), 1)
	assert.Equal(t, "+15550100", wa.Calls()[0].to.Address)
	assert.Equal(t, []string{"Asha", "RET-20260301-ABCDEF12"}, wa.Calls()[0].msg.Params)

	for _, ch := range notification.AllChannels {
		recs := repo.ByChannel(ch)
		require.Len(t, recs, 1)
		assert.Equal(t, entity.DeliveryStatusSent, recs[0].Status)
		assert.Equal(t, 1, recs[0].Attempts)
	}
}

func TestNotifier_RenderErrorIsolatesChannel(t *testing.T) {
	logger := &mockLogger{}
	email := &mockSender{channel: notification.ChannelEmail}
	wa := &mockSender{channel: notification.ChannelWhatsApp}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email, wa},
		WithNotifierLogger(logger), WithSleep(noSleep))

	payload := fullPayload()
	delete(payload, "return_url")
	require.NoError(t, n.Handle(context.Background(), approvedEvent(payload)))

	assert.Empty(t, email.Calls(), "email is skipped")
	assert.Len(t, wa.Calls(), 1, "whatsapp is still attempted")

	emailRecs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, emailRecs, 1)
	assert.Equal(t, entity.DeliveryStatusRenderFailed, emailRecs[0].Status)
	assert.Contains(t, emailRecs[0].LastError, "return_url")
	assert.True(t, logger.Has("warn", "Template render failed, channel skipped"))
}

func TestNotifier_RetriesTransientFailures(t *testing.T) {
	email := &mockSender{
		channel: notification.ChannelEmail,
		results: []error{port.Transient(errors.New("timeout")), port.Transient(errors.New("timeout")), nil},
	}
	repo := &mockDeliveryRepo{}
	var waits []time.Duration
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email},
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2}),
		WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
	)

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	calls := email.Calls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, "return.approved:42:email", c.key, "retries reuse the idempotency key")
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)

	recs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, recs, 1)
	assert.Equal(t, entity.DeliveryStatusSent, recs[0].Status)
	assert.Equal(t, 3, recs[0].Attempts)
}

func TestNotifier_ExhaustionIsLoggedAndAlerted(t *testing.T) {
	logger := &mockLogger{}
	alerter := &mockAlerter{}
	transient := port.Transient(errors.New("503"))
	email := &mockSender{channel: notification.ChannelEmail, results: []error{transient, transient, transient}}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email},
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Multiplier: 2}),
		WithNotifierLogger(logger), WithAlerter(alerter), WithSleep(noSleep))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	assert.Len(t, email.Calls(), 3)
	recs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, recs, 1)
	assert.Equal(t, entity.DeliveryStatusFailed, recs[0].Status)
	assert.Equal(t, 3, recs[0].Attempts)
	assert.True(t, logger.Has("error", "Notification delivery failed"))

	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, "RET-20260301-ABCDEF12", alerter.alerts[0].ReturnNumber)
	assert.Equal(t, 3, alerter.alerts[0].Attempts)
}

// stalledSender never answers until its context ends
type stalledSender struct{ calls int }

func (s *stalledSender) Channel() notification.Channel { return notification.ChannelEmail }

func (s *stalledSender) Send(ctx context.Context, _ *notification.RenderedMessage, _ port.Recipient, _ string) (*port.DeliveryReceipt, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestNotifier_StalledSendTimesOutPerAttempt(t *testing.T) {
	email := &stalledSender{}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email},
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, AttemptTimeout: 20 * time.Millisecond}),
		WithSleep(noSleep))

	done := make(chan error, 1)
	go func() {
		// dispatch runs detached, so only the attempt timeout can end a stalled send
		done <- n.Handle(context.WithoutCancel(context.Background()), approvedEvent(fullPayload()))
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Handle did not return for a stalled sender")
	}

	assert.Equal(t, 2, email.calls)
	recs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, recs, 1)
	assert.Equal(t, entity.DeliveryStatusFailed, recs[0].Status)
	assert.Equal(t, 2, recs[0].Attempts)
	assert.Contains(t, recs[0].LastError, "send exceeded")
}

func TestNotifier_PermanentFailureIsNotRetried(t *testing.T) {
	email := &mockSender{channel: notification.ChannelEmail, results: []error{port.Permanent(errors.New("mailbox does not exist"))}}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email}, WithSleep(noSleep))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	assert.Len(t, email.Calls(), 1)
	recs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, recs, 1)
	assert.Equal(t, entity.DeliveryStatusFailed, recs[0].Status)
	assert.Contains(t, recs[0].LastError, "mailbox does not exist")
}

func TestNotifier_UnclassifiedErrorsAreRetried(t *testing.T) {
	email := &mockSender{channel: notification.ChannelEmail, results: []error{errors.New("connection reset"), nil}}
	n := NewNotifier(approvedRoutes(), &mockDeliveryRepo{}, []port.ChannelSender{email}, WithSleep(noSleep))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	assert.Len(t, email.Calls(), 2)
}

func TestNotifier_SlowChannelDoesNotBlockOther(t *testing.T) {
	release := make(chan struct{})
	email := &mockSender{channel: notification.ChannelEmail, block: release}
	wa := &mockSender{channel: notification.ChannelWhatsApp}
	n := NewNotifier(approvedRoutes(), &mockDeliveryRepo{}, []port.ChannelSender{email, wa}, WithSleep(noSleep))

	done := make(chan struct{})
	go func() {
		_ = n.Handle(context.Background(), approvedEvent(fullPayload()))
		close(done)
	}()

	require.Eventually(t, func() bool { return len(wa.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, email.Calls())

	close(release)
	<-done
	assert.Len(t, email.Calls(), 1)
}

func TestNotifier_NoRoutesIsNoop(t *testing.T) {
	logger := &mockLogger{}
	email := &mockSender{channel: notification.ChannelEmail}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(staticRoutes{}, repo, []port.ChannelSender{email}, WithNotifierLogger(logger))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	assert.Empty(t, email.Calls())
	assert.Empty(t, repo.records)
	assert.Equal(t, 0, logger.Count("error"))
	assert.Equal(t, 0, logger.Count("warn"))
}

func TestNotifier_ChannelWithoutSenderIsSkipped(t *testing.T) {
	wa := &mockSender{channel: notification.ChannelWhatsApp}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{wa}, WithSleep(noSleep))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	assert.Len(t, wa.Calls(), 1)
	assert.Empty(t, repo.ByChannel(notification.ChannelEmail))
}

func TestNotifier_DeliveryGuardSuppressesDuplicates(t *testing.T) {
	guard := &memoryGuard{}
	email := &mockSender{channel: notification.ChannelEmail}
	repo := &mockDeliveryRepo{}
	routes := staticRoutes{"return.approved": {{Channel: notification.ChannelEmail, Template: approvedEmailTemplate()}}}
	n := NewNotifier(routes, repo, []port.ChannelSender{email}, WithDeliveryGuard(guard), WithSleep(noSleep))

	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))
	require.NoError(t, n.Handle(context.Background(), approvedEvent(fullPayload())))

	assert.Len(t, email.Calls(), 1)
	recs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, recs, 2)
	assert.Equal(t, entity.DeliveryStatusSent, recs[0].Status)
	assert.Equal(t, entity.DeliveryStatusDuplicate, recs[1].Status)
	assert.Equal(t, recs[0].ProviderRef, recs[1].ProviderRef)
}

func TestNotifier_VendorEventsGoToVendor(t *testing.T) {
	tmpl := &notification.Template{
		Code:      "vendor_return_requested",
		Channel:   notification.ChannelEmail,
		Variables: []string{"return_number"},
		Active:    true,
		Content:   notification.EmailContent{Subject: "New return", Body: "{{return_number}}"},
	}
	routes := staticRoutes{"vendor.return_requested": {{Channel: notification.ChannelEmail, Template: tmpl}}}
	email := &mockSender{channel: notification.ChannelEmail}
	n := NewNotifier(routes, &mockDeliveryRepo{}, []port.ChannelSender{email})

	payload := fullPayload()
	payload["vendor_email"] = "ops@vendor.example"
	payload["vendor_name"] = "Acme"
	evt := event.NewEvent(event.TypeVendorReturnRequested, 42, "RET-1", payload, time.Now())

	require.NoError(t, n.Handle(context.Background(), evt))

	require.Len(t, email.Calls(), 1)
	assert.Equal(t, "ops@vendor.example", email.Calls()[0].to.Address)
	assert.Equal(t, "Acme", email.Calls()[0].to.Name)
}

func TestNotifier_MissingRecipientFailsWithoutSending(t *testing.T) {
	email := &mockSender{channel: notification.ChannelEmail}
	repo := &mockDeliveryRepo{}
	n := NewNotifier(approvedRoutes(), repo, []port.ChannelSender{email}, WithSleep(noSleep))

	payload := fullPayload()
	delete(payload, "customer_email")
	require.NoError(t, n.Handle(context.Background(), approvedEvent(payload)))

	assert.Empty(t, email.Calls())
	recs := repo.ByChannel(notification.ChannelEmail)
	require.Len(t, recs, 1)
	assert.Equal(t, entity.DeliveryStatusFailed, recs[0].Status)
}

func TestNotifier_RegisterSubscribesAllEventTypes(t *testing.T) {
	email := &mockSender{channel: notification.ChannelEmail}
	routes := staticRoutes{"return.approved": {{Channel: notification.ChannelEmail, Template: approvedEmailTemplate()}}}
	n := NewNotifier(routes, &mockDeliveryRepo{}, []port.ChannelSender{email})
	d := NewDispatcher()
	n.Register(d)

	d.Emit(context.Background(), approvedEvent(fullPayload()))
	require.NoError(t, d.Close())

	assert.Len(t, email.Calls(), 1)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 3}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 900*time.Millisecond, p.Backoff(3))
	assert.Equal(t, time.Second, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(10))
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 0, Multiplier: 0, InitialBackoff: time.Minute, MaxBackoff: time.Second}.normalized()

	assert.Equal(t, 1, p.MaxAttempts)
	assert.Equal(t, float64(1), p.Multiplier)
	assert.Equal(t, time.Second, p.InitialBackoff)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
