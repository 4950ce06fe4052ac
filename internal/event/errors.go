package event

import "errors"

// Bus errors.
var (
	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("handler must not be nil")
	// ErrInvalidTopic is returned when a topic or pattern is malformed.
	ErrInvalidTopic = errors.New("invalid topic")
	// ErrInvalidEvent is returned when a published value carries no topic.
	ErrInvalidEvent = errors.New("event does not provide a topic")
	// ErrSubscriptionNotFound is returned when cancelling an unknown
	// subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
