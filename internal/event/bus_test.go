package event

import (
	"context"
	"errors"
	"testing"
)

type testPayload struct {
	Value int
}

func TestBus_PublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	var got []int

	_, err := bus.SubscribeFunc("debug.session.*", func(_ context.Context, ev any) error {
		typed, ok := ev.(Event[testPayload])
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		got = append(got, typed.Payload.Value)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), NewEvent("debug.session.paused", testPayload{Value: 1})); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(context.Background(), NewEvent("debug.source.changed", testPayload{Value: 2})); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(got) != 1 || got[0] != 1 {
		t.Errorf("delivered payloads = %v, expected [1]", got)
	}
}

func TestBus_PublishIsSynchronous(t *testing.T) {
	bus := NewBus()
	delivered := false
	_, err := bus.SubscribeFunc("debug.**", func(_ context.Context, _ any) error {
		delivered = true
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), NewEvent("debug.session.resumed", testPayload{})); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !delivered {
		t.Error("handler did not run before Publish returned")
	}
}

func TestBus_PriorityOrder(t *testing.T) {
	bus := NewBus()
	var order []string

	subscribe := func(name string, p Priority) {
		_, err := bus.SubscribeFunc("debug.*", func(_ context.Context, _ any) error {
			order = append(order, name)
			return nil
		}, WithPriority(p))
		if err != nil {
			t.Fatalf("Subscribe %s failed: %v", name, err)
		}
	}

	subscribe("low", PriorityLow)
	subscribe("critical", PriorityCritical)
	subscribe("normal", PriorityNormal)

	if err := bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{})); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	expected := []string{"critical", "normal", "low"}
	if len(order) != len(expected) {
		t.Fatalf("delivery order = %v, expected %v", order, expected)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("delivery order[%d] = %q, expected %q", i, order[i], expected[i])
		}
	}
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	var recovered any
	bus := NewBus(WithPanicHandler(func(_ any, r any) {
		recovered = r
	}))

	_, err := bus.SubscribeFunc("debug.*", func(_ context.Context, _ any) error {
		panic("handler exploded")
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	ran := false
	_, err = bus.SubscribeFunc("debug.*", func(_ context.Context, _ any) error {
		ran = true
		return nil
	}, WithPriority(PriorityLow))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{})); err != nil {
		t.Fatalf("Publish returned error after recovered panic: %v", err)
	}
	if recovered != "handler exploded" {
		t.Errorf("recovered = %v, expected handler panic value", recovered)
	}
	if !ran {
		t.Error("panic in one handler prevented delivery to the next")
	}
	if stats := bus.Stats(); stats.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d, expected 1", stats.HandlerPanics)
	}
}

func TestBus_HandlerErrorsAreJoined(t *testing.T) {
	bus := NewBus()
	errBoom := errors.New("boom")

	_, err := bus.SubscribeFunc("debug.*", func(_ context.Context, _ any) error {
		return errBoom
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	err = bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{}))
	if !errors.Is(err, errBoom) {
		t.Errorf("Publish error = %v, expected to wrap %v", err, errBoom)
	}
}

func TestBus_OnceSubscriptionCancelsAfterDelivery(t *testing.T) {
	bus := NewBus()
	count := 0
	_, err := bus.SubscribeFunc("debug.*", func(_ context.Context, _ any) error {
		count++
		return nil
	}, WithOnce())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{})); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if count != 1 {
		t.Errorf("once handler ran %d times, expected 1", count)
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	count := 0
	sub, err := bus.SubscribeFunc("debug.*", func(_ context.Context, _ any) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	sub.Cancel()
	if err := bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{})); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if count != 0 {
		t.Errorf("cancelled handler ran %d times", count)
	}
	if sub.IsActive() {
		t.Error("subscription still active after Cancel")
	}
}

func TestBus_SubscribeValidation(t *testing.T) {
	bus := NewBus()

	if _, err := bus.Subscribe("debug.*", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler error = %v, expected ErrNilHandler", err)
	}
	if _, err := bus.SubscribeFunc("", func(_ context.Context, _ any) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty pattern error = %v, expected ErrInvalidTopic", err)
	}
}

func TestBus_PublishRejectsTopiclessValues(t *testing.T) {
	bus := NewBus()
	if err := bus.Publish(context.Background(), struct{}{}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish error = %v, expected ErrInvalidEvent", err)
	}
}

func TestBus_FilterSkipsDelivery(t *testing.T) {
	bus := NewBus()
	var got []int
	_, err := bus.SubscribeFunc("debug.*", func(_ context.Context, ev any) error {
		got = append(got, ev.(Event[testPayload]).Payload.Value)
		return nil
	}, WithFilter(func(ev any) bool {
		return ev.(Event[testPayload]).Payload.Value%2 == 0
	}))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 1; i <= 4; i++ {
		if err := bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{Value: i})); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("filtered payloads = %v, expected [2 4]", got)
	}
}

func TestAsHandler_SkipsMismatchedPayloads(t *testing.T) {
	bus := NewBus()
	count := 0
	handler := AsHandler(func(_ context.Context, ev Event[testPayload]) error {
		count += ev.Payload.Value
		return nil
	})
	if _, err := bus.Subscribe("debug.*", handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), NewEvent("debug.tick", testPayload{Value: 5})); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(context.Background(), NewEvent("debug.tick", "not the payload type")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if count != 5 {
		t.Errorf("typed handler total = %d, expected 5", count)
	}
}
