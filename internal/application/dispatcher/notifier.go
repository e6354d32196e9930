package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// RouteResolver resolves an event code to the channels that should receive it
type RouteResolver interface {
	Lookup(eventCode string) []notification.Route
}

// Notifier turns domain events into channel deliveries. Each channel is
// rendered, sent and retried independently of the others.
type Notifier struct {
	routes     RouteResolver
	senders    map[notification.Channel]port.ChannelSender
	deliveries port.DeliveryRepository
	guard      port.DeliveryGuard
	alerter    port.AlertNotifier
	retry      RetryPolicy
	logger     Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NotifierOption configures the notifier
type NotifierOption func(*Notifier)

// WithNotifierLogger sets a logger for the notifier
func WithNotifierLogger(logger Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithRetryPolicy sets the retry bound for transient failures
func WithRetryPolicy(p RetryPolicy) NotifierOption {
	return func(n *Notifier) {
		n.retry = p.normalized()
	}
}

// WithDeliveryGuard enables idempotency-key deduplication before sending
func WithDeliveryGuard(g port.DeliveryGuard) NotifierOption {
	return func(n *Notifier) {
		n.guard = g
	}
}

// WithAlerter forwards exhausted and permanent failures to operators
func WithAlerter(a port.AlertNotifier) NotifierOption {
	return func(n *Notifier) {
		n.alerter = a
	}
}

// WithSleep overrides the backoff wait, mainly for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) NotifierOption {
	return func(n *Notifier) {
		n.sleep = sleep
	}
}

// NewNotifier creates a notifier. Channels without a sender are skipped.
func NewNotifier(routes RouteResolver, deliveries port.DeliveryRepository, senders []port.ChannelSender, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		routes:     routes,
		senders:    make(map[notification.Channel]port.ChannelSender, len(senders)),
		deliveries: deliveries,
		retry:      DefaultRetryPolicy(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, s := range senders {
		n.senders[s.Channel()] = s
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register subscribes the notifier to every event type the workflow emits
func (n *Notifier) Register(d Dispatcher) {
	d.Subscribe("notifier", n.Handle, event.AllTypes...)
}

// Handle dispatches one event to all resolved channels and waits for them.
// Delivery problems are logged and recorded, never returned.
func (n *Notifier) Handle(ctx context.Context, evt *event.Event) error {
	routes := n.routes.Lookup(evt.Type.String())
	if len(routes) == 0 {
		n.log().Debug("No notification routes for event",
			"event_type", evt.Type,
			"case_id", evt.CaseID,
		)
		return nil
	}

	var wg sync.WaitGroup
	for _, route := range routes {
		wg.Add(1)
		go func(r notification.Route) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					n.log().Error("Channel delivery panic recovered",
						"event_type", evt.Type,
						"case_id", evt.CaseID,
						"channel", r.Channel,
						"panic", p,
					)
				}
			}()
			n.deliver(ctx, evt, r)
		}(route)
	}
	wg.Wait()
	return nil
}

func (n *Notifier) deliver(ctx context.Context, evt *event.Event, route notification.Route) {
	key := evt.IdempotencyKey(route.Channel.String())
	rec := &entity.NotificationDelivery{
		EventID:        evt.ID,
		EventCode:      evt.Type.String(),
		CaseID:         evt.CaseID,
		Channel:        route.Channel.String(),
		TemplateCode:   route.Template.Code,
		IdempotencyKey: key,
	}

	sender, ok := n.senders[route.Channel]
	if !ok {
		n.log().Debug("No sender configured for channel",
			"event_type", evt.Type,
			"channel", route.Channel,
		)
		return
	}

	msg, err := notification.Render(route.Template, notification.BindingsFor(route.Template, evt.Payload))
	if err != nil {
		n.log().Warn("Template render failed, channel skipped",
			"event_type", evt.Type,
			"case_id", evt.CaseID,
			"channel", route.Channel,
			"template_code", route.Template.Code,
			"error", err,
		)
		rec.Status = entity.DeliveryStatusRenderFailed
		rec.LastError = err.Error()
		n.record(ctx, rec)
		return
	}

	to := n.recipient(evt, route.Channel)
	rec.Recipient = to.Address
	if to.Address == "" {
		n.fail(ctx, evt, rec, port.Permanent(errors.New("no recipient address")))
		return
	}

	if n.guard != nil {
		ref, seen, err := n.guard.Seen(ctx, key)
		if err != nil {
			n.log().Warn("Delivery guard unavailable, sending anyway",
				"idempotency_key", key,
				"error", err,
			)
		} else if seen {
			n.log().Info("Notification already delivered",
				"event_type", evt.Type,
				"channel", route.Channel,
				"idempotency_key", key,
			)
			rec.Status = entity.DeliveryStatusDuplicate
			rec.ProviderRef = ref
			n.record(ctx, rec)
			return
		}
	}

	var lastErr error
	for attempt := 1; attempt <= n.retry.MaxAttempts; attempt++ {
		rec.Attempts = attempt

		receipt, err := n.send(ctx, sender, msg, to, key)
		if err == nil {
			n.succeed(ctx, evt, rec, receipt)
			return
		}
		lastErr = err

		if port.IsPermanent(err) {
			break
		}
		if attempt == n.retry.MaxAttempts {
			break
		}

		wait := n.retry.Backoff(attempt)
		n.log().Debug("Transient send failure, retrying",
			"event_type", evt.Type,
			"channel", route.Channel,
			"attempt", attempt,
			"backoff", wait.String(),
			"error", err,
		)
		if err := n.sleep(ctx, wait); err != nil {
			lastErr = fmt.Errorf("retry abandoned: %w", err)
			break
		}
	}

	n.fail(ctx, evt, rec, lastErr)
}

// send runs one attempt under the policy's attempt timeout. A sender that
// overruns it fails transiently.
func (n *Notifier) send(ctx context.Context, sender port.ChannelSender, msg *notification.RenderedMessage, to port.Recipient, key string) (*port.DeliveryReceipt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, n.retry.AttemptTimeout)
	defer cancel()

	receipt, err := sender.Send(attemptCtx, msg, to, key)
	if err != nil && !port.IsPermanent(err) && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, port.Transient(fmt.Errorf("send exceeded %s: %w", n.retry.AttemptTimeout, err))
	}
	return receipt, err
}

func (n *Notifier) succeed(ctx context.Context, evt *event.Event, rec *entity.NotificationDelivery, receipt *port.DeliveryReceipt) {
	rec.Status = entity.DeliveryStatusSent
	if receipt != nil {
		rec.ProviderRef = receipt.ProviderRef
		if receipt.Duplicate {
			rec.Status = entity.DeliveryStatusDuplicate
		}
	}

	if n.guard != nil {
		if err := n.guard.Remember(ctx, rec.IdempotencyKey, rec.ProviderRef); err != nil {
			n.log().Warn("Failed to remember delivered key",
				"idempotency_key", rec.IdempotencyKey,
				"error", err,
			)
		}
	}

	n.log().Info("Notification delivered",
		"event_type", evt.Type,
		"case_id", evt.CaseID,
		"channel", rec.Channel,
		"attempts", rec.Attempts,
		"provider_ref", rec.ProviderRef,
	)
	n.record(ctx, rec)
}

func (n *Notifier) fail(ctx context.Context, evt *event.Event, rec *entity.NotificationDelivery, err error) {
	rec.Status = entity.DeliveryStatusFailed
	if err != nil {
		rec.LastError = err.Error()
	}

	n.log().Error("Notification delivery failed",
		"event_type", evt.Type,
		"case_id", evt.CaseID,
		"channel", rec.Channel,
		"idempotency_key", rec.IdempotencyKey,
		"attempts", rec.Attempts,
		"permanent", port.IsPermanent(err),
		"error", err,
	)
	n.record(ctx, rec)

	if n.alerter == nil {
		return
	}
	alert := port.FailureAlert{
		EventCode:      rec.EventCode,
		CaseID:         rec.CaseID,
		ReturnNumber:   evt.ReturnNumber,
		Channel:        notification.Channel(rec.Channel),
		IdempotencyKey: rec.IdempotencyKey,
		Attempts:       rec.Attempts,
		Err:            rec.LastError,
	}
	if err := n.alerter.NotifyFailure(ctx, alert); err != nil {
		n.log().Warn("Failed to send operator alert",
			"idempotency_key", rec.IdempotencyKey,
			"error", err,
		)
	}
}

func (n *Notifier) record(ctx context.Context, rec *entity.NotificationDelivery) {
	if n.deliveries == nil {
		return
	}
	rec.CreatedAt = n.now()
	if err := n.deliveries.Record(ctx, rec); err != nil {
		n.log().Error("Failed to record delivery",
			"idempotency_key", rec.IdempotencyKey,
			"status", rec.Status,
			"error", err,
		)
	}
}

func (n *Notifier) recipient(evt *event.Event, ch notification.Channel) port.Recipient {
	nameKey, addrKey := evt.Type.Recipient(ch == notification.ChannelEmail)
	return port.Recipient{
		Name:    evt.Payload[nameKey],
		Address: evt.Payload[addrKey],
	}
}

func (n *Notifier) log() Logger {
	if n.logger == nil {
		return nopLogger{}
	}
	return n.logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
