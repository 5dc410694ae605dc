package session

import (
	"time"

	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

// FrameEvent describes one frame crossing a station connection.
type FrameEvent struct {
	StationID string
	Message   ocppj.Message
	// Action is the call's action. For responses it is the action of the
	// call being answered, or empty when that call is unknown.
	Action string
	Frame  []byte
	At     time.Time
}

// Observer is told about every decoded inbound frame and every frame
// written. Implementations must not block; they run on the connection's
// read path and under the send lock.
type Observer interface {
	FrameReceived(ev FrameEvent)
	FrameSent(ev FrameEvent)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(FrameEvent) {}
func (nopObserver) FrameSent(FrameEvent)     {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) FrameReceived(ev FrameEvent) {
	for _, obs := range o {
		obs.FrameReceived(ev)
	}
}

func (o Observers) FrameSent(ev FrameEvent) {
	for _, obs := range o {
		obs.FrameSent(ev)
	}
}

// ConnectionObserver is optionally implemented by an Observer that wants to
// know when stations connect and disconnect.
type ConnectionObserver interface {
	StationConnected(stationID string, at time.Time)
	StationDisconnected(stationID string, at time.Time)
}

func (o Observers) StationConnected(stationID string, at time.Time) {
	for _, obs := range o {
		if co, ok := obs.(ConnectionObserver); ok {
			co.StationConnected(stationID, at)
		}
	}
}

func (o Observers) StationDisconnected(stationID string, at time.Time) {
	for _, obs := range o {
		if co, ok := obs.(ConnectionObserver); ok {
			co.StationDisconnected(stationID, at)
		}
	}
}
