// Package event provides a synchronous publish/subscribe bus for
// in-process notifications. Handlers run on the publisher's goroutine in
// subscription priority order, so publishers observe every side effect of
// delivery before Publish returns.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dshills/luadbg/internal/event/topic"
)

// Metadata carries delivery information common to all events.
type Metadata struct {
	// ID uniquely identifies this event instance.
	ID string
	// Timestamp records when the event was created.
	Timestamp time.Time
	// Source identifies the component that published the event.
	Source string
}

// Event is a typed event with a topic and payload.
type Event[T any] struct {
	Type     topic.Topic
	Payload  T
	Metadata Metadata
}

// NewEvent creates an event with generated metadata.
func NewEvent[T any](t topic.Topic, payload T) Event[T] {
	return Event[T]{
		Type:    t,
		Payload: payload,
		Metadata: Metadata{
			ID:        generateID(),
			Timestamp: time.Now(),
		},
	}
}

// WithSource returns a copy of the event with the source set.
func (e Event[T]) WithSource(source string) Event[T] {
	e.Metadata.Source = source
	return e
}

// EventTopic returns the event's topic. Implements TopicProvider.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata returns the event's metadata.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// TopicProvider is implemented by values that know their own topic.
// The bus uses it to route published values.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// generateID returns a random hex identifier. Falls back to a
// timestamp-derived ID if the random source is unavailable.
func generateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("evt-%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
