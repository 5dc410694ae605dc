package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/ocpp-central-system/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the event subject prefix (OCPP_EVENT_SUBJECT_PREFIX).
	SubjectPrefix string
}

// CommsPublisher publishes events to COMMS subjects under a prefix.
type CommsPublisher struct {
	nc     *comms.Conn
	prefix string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	prefix := commsutil.SubjectEventsPrefix
	if opts != nil && opts.SubjectPrefix != "" {
		prefix = opts.SubjectPrefix
	}
	return &CommsPublisher{nc: nc, prefix: prefix}
}

// PublishMessage publishes to <prefix>.<station>.<direction>.<action>.
func (p *CommsPublisher) PublishMessage(_ context.Context, event *MessageEvent) error {
	subject := commsutil.BuildMessageSubject(p.prefix, event.StationID, event.Direction, event.Action)
	return p.publish(subject, event)
}

// PublishConnection publishes to <prefix>.<station>.connection.
func (p *CommsPublisher) PublishConnection(_ context.Context, event *ConnectionEvent) error {
	return p.publish(commsutil.BuildConnectionSubject(p.prefix, event.StationID), event)
}

func (p *CommsPublisher) publish(subject string, event any) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}
	slog.Debug(fmt.Sprintf("%s - Published event to %s", commsPublisherLogPrefix, subject))
	return nil
}
