// Package events defines the traffic and connection events the central
// system publishes, and the publishers that deliver them.
package events

import (
	"encoding/json"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

// Directions of a frame.
const (
	DirectionInbound  = "C2S"
	DirectionOutbound = "S2C"
)

// MessageEvent is emitted for every frame exchanged with a station.
type MessageEvent struct {
	StationID        string          `json:"stationId"`
	Direction        string          `json:"direction"`
	MessageType      int             `json:"messageType"`
	UniqueID         string          `json:"uniqueId"`
	Action           string          `json:"action,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ErrorCode        string          `json:"errorCode,omitempty"`
	ErrorDescription string          `json:"errorDescription,omitempty"`
	ErrorDetails     map[string]any  `json:"errorDetails,omitempty"`
	Timestamp        string          `json:"timestamp"`
}

// ConnectionEvent is emitted when a station connects or disconnects.
type ConnectionEvent struct {
	StationID string `json:"stationId"`
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// NewMessageEvent describes m as it crossed the station connection.
// action is the call's action, also for responses.
func NewMessageEvent(stationID, direction string, m ocppj.Message, action string, at time.Time) *MessageEvent {
	ev := &MessageEvent{
		StationID:   stationID,
		Direction:   direction,
		MessageType: int(m.Type()),
		UniqueID:    m.UniqueID(),
		Action:      action,
		Timestamp:   at.UTC().Format(time.RFC3339Nano),
	}
	switch v := m.(type) {
	case *ocppj.Call:
		ev.Action = v.Action
		ev.Payload = v.Payload
	case *ocppj.CallResult:
		ev.Payload = v.Payload
	case *ocppj.CallError:
		ev.ErrorCode = string(v.ErrorCode)
		ev.ErrorDescription = v.ErrorDescription
		ev.ErrorDetails = v.ErrorDetails
	}
	return ev
}

// NewConnectionEvent describes a station connecting or disconnecting.
func NewConnectionEvent(stationID string, connected bool, at time.Time) *ConnectionEvent {
	return &ConnectionEvent{StationID: stationID, Connected: connected, Timestamp: at.UTC().Format(time.RFC3339Nano)}
}
