package events

import "context"

// NoopPublisher discards every event. The server uses it when NATS is not
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
