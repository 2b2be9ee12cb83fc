package broker

import (
	"context"
)

// Topics published by the API
const (
	TopicUserRegistered  string = "user.registered"
	TopicPaymentRecorded string = "payment.recorded"
)

// Publisher defines the interface for publishing notifications via message broker.
// Payload values must be JSON-like: nil, bool, numbers, strings, []interface{}
// and map[string]interface{}.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload map[string]interface{}) error
	Close()
}

// Discard is a Publisher that drops every message. It is used when no broker is configured.
type Discard struct{}

var _ Publisher = Discard{}

func (Discard) Publish(ctx context.Context, topic string, payload map[string]interface{}) error {
	return nil
}

func (Discard) Close() {}
