package event

import "context"

// Priority determines delivery order within a topic. Lower values are
// delivered first.
type Priority int

// Standard priority levels.
const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 100
	PriorityNormal   Priority = 200
	PriorityLow      Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// Handler processes published events. The event argument is the value
// passed to Publish; handlers type-assert to the event type they expect.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event any) error

// Handle calls the function.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// TypedHandlerFunc handles events of a specific payload type.
type TypedHandlerFunc[T any] func(ctx context.Context, event Event[T]) error

// AsHandler wraps a typed handler. Events whose payload type does not
// match are skipped silently.
func AsHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return HandlerFunc(func(ctx context.Context, ev any) error {
		typed, ok := ev.(Event[T])
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

// FilterFunc decides whether an event should be delivered to a
// subscription. Returning false skips delivery without error.
type FilterFunc func(event any) bool

// Stats reports bus activity counters.
type Stats struct {
	EventsPublished   uint64
	EventsDelivered   uint64
	EventsDropped     uint64
	HandlerErrors     uint64
	HandlerPanics     uint64
	ActiveSubscribers int
}
