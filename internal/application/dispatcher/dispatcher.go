package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/marketplace-returns/internal/domain/event"
)

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes domain events to subscribed handlers
type Dispatcher interface {
	// Subscribe registers a named handler for the given event types
	Subscribe(name string, handler Handler, types ...event.Type)

	// Emit hands events to their handlers in the background and returns
	// at once. Handlers outlive the caller's context cancellation.
	Emit(ctx context.Context, events ...*event.Event)

	// Deliver runs every handler of evt before returning. A failing
	// handler does not stop the others; their errors are joined.
	Deliver(ctx context.Context, evt *event.Event) error

	// Pending reports handler runs started by Emit that have not finished
	Pending() int

	// Close stops accepting events and waits for pending handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu   sync.RWMutex
	subs map[event.Type][]subscription

	logger Logger
	slots  chan struct{}

	wg      sync.WaitGroup
	pending atomic.Int64
	closed  atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaxInFlight bounds how many emitted handler runs execute at once.
// Runs beyond the bound wait for a slot; Emit itself never blocks.
func WithMaxInFlight(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs:   make(map[event.Type][]subscription),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(name string, handler Handler, types ...event.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range types {
		d.subs[t] = append(d.subs[t], subscription{name: name, handler: handler})
	}
	d.logger.Debug("Handler subscribed", "handler", name, "event_types", len(types))
}

func (d *eventDispatcher) subscribers(t event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]subscription(nil), d.subs[t]...)
}

type emitted struct {
	evt *event.Event
	sub subscription
}

func (d *eventDispatcher) Emit(ctx context.Context, events ...*event.Event) {
	// the emitting request may finish before delivery does
	detached := context.WithoutCancel(ctx)

	// runs are counted under the read lock so Close cannot finish waiting
	// between the closed check and wg.Add
	d.mu.RLock()
	if d.closed.Load() {
		d.mu.RUnlock()
		for _, evt := range events {
			d.logger.Error("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID, "case_id", evt.CaseID)
		}
		return
	}

	var runs []emitted
	for _, evt := range events {
		subs := d.subs[evt.Type]
		d.logger.Debug("Emitting event",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"case_id", evt.CaseID,
			"handlers", len(subs),
		)
		for _, s := range subs {
			runs = append(runs, emitted{evt: evt, sub: s})
		}
	}
	d.wg.Add(len(runs))
	d.pending.Add(int64(len(runs)))
	d.mu.RUnlock()

	for _, r := range runs {
		go d.runEmitted(detached, r)
	}
}

func (d *eventDispatcher) runEmitted(ctx context.Context, r emitted) {
	defer d.wg.Done()
	defer d.pending.Add(-1)

	if d.slots != nil {
		d.slots <- struct{}{}
		defer func() { <-d.slots }()
	}
	if err := d.run(ctx, r.evt, r.sub); err != nil {
		d.logger.Error("Handler failed",
			"event_type", r.evt.Type,
			"event_id", r.evt.ID,
			"handler", r.sub.name,
			"error", err,
		)
	}
}

func (d *eventDispatcher) Deliver(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	var errs []error
	for _, s := range d.subscribers(evt.Type) {
		if err := d.run(ctx, evt, s); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) Pending() int {
	return int(d.pending.Load())
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed.Store(true)
	d.mu.Unlock()

	d.logger.Info("Closing dispatcher", "pending", d.Pending())
	d.wg.Wait()
	d.logger.Info("Dispatcher closed")
	return nil
}

// run calls one handler, turning a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}
