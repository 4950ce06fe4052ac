package event

import (
	"sync/atomic"

	"github.com/dshills/luadbg/internal/event/topic"
)

// Subscription represents a registered handler on the bus. It is returned
// by Subscribe and can be cancelled independently of the bus.
type Subscription struct {
	id        string
	pattern   topic.Topic
	handler   Handler
	priority  Priority
	filter    FilterFunc
	once      bool
	cancelled atomic.Bool
	bus       *Bus
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Pattern returns the topic pattern the subscription matches.
func (s *Subscription) Pattern() topic.Topic {
	return s.pattern
}

// Priority returns the subscription's delivery priority.
func (s *Subscription) Priority() Priority {
	return s.priority
}

// IsActive reports whether the subscription can still receive events.
func (s *Subscription) IsActive() bool {
	return !s.cancelled.Load()
}

// Cancel removes the subscription from the bus. Cancelling an already
// cancelled subscription is a no-op.
func (s *Subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	if s.bus != nil {
		s.bus.remove(s)
	}
}

// shouldDeliver applies the subscription's filter, if any.
func (s *Subscription) shouldDeliver(event any) bool {
	if s.filter == nil {
		return true
	}
	return s.filter(event)
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithPriority sets the delivery priority. Lower values run first.
func WithPriority(p Priority) SubscribeOption {
	return func(s *Subscription) { s.priority = p }
}

// WithFilter attaches a delivery filter.
func WithFilter(f FilterFunc) SubscribeOption {
	return func(s *Subscription) { s.filter = f }
}

// WithOnce cancels the subscription after its first delivery.
func WithOnce() SubscribeOption {
	return func(s *Subscription) { s.once = true }
}
