package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/luadbg/internal/event/topic"
)

// Bus is a synchronous publish/subscribe dispatcher. Publish delivers the
// event to every matching subscription before returning, in ascending
// priority order, on the caller's goroutine. A panicking handler is
// recovered and counted; it never unwinds into the publisher.
//
// The bus itself is safe for concurrent use. Ordering guarantees apply per
// publisher: two events published from the same goroutine are observed by
// every subscriber in publish order.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription

	onPanic func(event any, recovered any)

	published uint64
	delivered uint64
	dropped   uint64
	errCount  uint64
	panics    uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler installs a callback invoked when a handler panics.
func WithPanicHandler(fn func(event any, recovered any)) BusOption {
	return func(b *Bus) { b.onPanic = fn }
}

// NewBus creates an empty bus ready for use.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for all topics matching pattern. The
// pattern may contain wildcards ("*" for one segment, "**" for any
// number).
func (b *Bus) Subscribe(pattern topic.Topic, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := &Subscription{
		id:       generateID(),
		pattern:  pattern,
		handler:  handler,
		priority: PriorityNormal,
		bus:      b,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	// Stable sort keeps registration order within a priority level.
	sort.SliceStable(b.subs, func(i, j int) bool {
		return b.subs[i].priority < b.subs[j].priority
	})
	b.mu.Unlock()
	return sub, nil
}

// SubscribeFunc registers a plain function as a handler.
func (b *Bus) SubscribeFunc(pattern topic.Topic, fn func(ctx context.Context, event any) error, opts ...SubscribeOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, HandlerFunc(fn), opts...)
}

// Unsubscribe cancels the given subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil || !b.owns(sub) {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()
	return nil
}

// Publish delivers the event to every matching subscription and returns
// after all handlers have run. Handler errors are joined and returned;
// delivery continues past a failing handler. The published value must
// implement TopicProvider (Event[T] does).
func (b *Bus) Publish(ctx context.Context, event any) error {
	provider, ok := event.(TopicProvider)
	if !ok {
		return ErrInvalidEvent
	}
	t := provider.EventTopic()
	if !t.IsValid() {
		return ErrInvalidEvent
	}
	atomic.AddUint64(&b.published, 1)

	// Snapshot matching subscriptions so handlers may subscribe or
	// cancel without deadlocking.
	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.IsActive() && t.Matches(sub.pattern) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, sub := range matched {
		if !sub.IsActive() {
			continue
		}
		if !sub.shouldDeliver(event) {
			atomic.AddUint64(&b.dropped, 1)
			continue
		}
		if err := b.dispatch(ctx, sub, event); err != nil {
			atomic.AddUint64(&b.errCount, 1)
			errs = append(errs, err)
		} else {
			atomic.AddUint64(&b.delivered, 1)
		}
		if sub.once {
			sub.Cancel()
		}
	}
	return errors.Join(errs...)
}

// dispatch runs a single handler with panic recovery.
func (b *Bus) dispatch(ctx context.Context, sub *Subscription, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&b.panics, 1)
			if b.onPanic != nil {
				b.onPanic(event, r)
			}
			err = nil
		}
	}()
	return sub.handler.Handle(ctx, event)
}

// Stats returns a snapshot of bus activity.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	active := 0
	for _, sub := range b.subs {
		if sub.IsActive() {
			active++
		}
	}
	b.mu.RUnlock()
	return Stats{
		EventsPublished:   atomic.LoadUint64(&b.published),
		EventsDelivered:   atomic.LoadUint64(&b.delivered),
		EventsDropped:     atomic.LoadUint64(&b.dropped),
		HandlerErrors:     atomic.LoadUint64(&b.errCount),
		HandlerPanics:     atomic.LoadUint64(&b.panics),
		ActiveSubscribers: active,
	}
}

// owns reports whether the subscription belongs to this bus.
func (b *Bus) owns(sub *Subscription) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s == sub {
			return true
		}
	}
	return false
}

// remove deletes the subscription from the registry.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
