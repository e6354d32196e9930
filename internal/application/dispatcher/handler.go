package dispatcher

import (
	"context"

	"github.com/garyjia/marketplace-returns/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// subscription is one named handler bound to an event type
type subscription struct {
	name    string
	handler Handler
}
