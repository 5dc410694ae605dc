package events

import "context"

// EventPublisher publishes station traffic and connection events.
type EventPublisher interface {
	PublishMessage(ctx context.Context, event *MessageEvent) error
	PublishConnection(ctx context.Context, event *ConnectionEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (COMMS disabled).
type NoOpPublisher struct{}

// PublishMessage is a no-op.
func (p *NoOpPublisher) PublishMessage(_ context.Context, _ *MessageEvent) error {
	return nil
}

// PublishConnection is a no-op.
func (p *NoOpPublisher) PublishConnection(_ context.Context, _ *ConnectionEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls callback functions (for
// testing and in-process consumers). Nil callbacks are skipped.
type CallbackPublisher struct {
	onMessage    func(ctx context.Context, event *MessageEvent) error
	onConnection func(ctx context.Context, event *ConnectionEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(
	onMessage func(ctx context.Context, event *MessageEvent) error,
	onConnection func(ctx context.Context, event *ConnectionEvent) error,
) *CallbackPublisher {
	return &CallbackPublisher{onMessage: onMessage, onConnection: onConnection}
}

// PublishMessage calls the message callback.
func (p *CallbackPublisher) PublishMessage(ctx context.Context, event *MessageEvent) error {
	if p.onMessage == nil {
		return nil
	}
	return p.onMessage(ctx, event)
}

// PublishConnection calls the connection callback.
func (p *CallbackPublisher) PublishConnection(ctx context.Context, event *ConnectionEvent) error {
	if p.onConnection == nil {
		return nil
	}
	return p.onConnection(ctx, event)
}
