package csms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/db"
	"github.com/morezero/ocpp-central-system/pkg/events"
	"github.com/morezero/ocpp-central-system/pkg/metrics"
	"github.com/morezero/ocpp-central-system/pkg/session"
)

const journalLogPrefix = "csms:journal"

// DefaultJournalQueue bounds the frames waiting to be journaled.
const DefaultJournalQueue = 1024

// JournalStore persists journal records. *db.Repository satisfies it.
type JournalStore interface {
	InsertMessage(ctx context.Context, m db.MessageRecord) (*db.MessageRecord, error)
}

type journalEntry struct {
	message    *events.MessageEvent
	connection *events.ConnectionEvent
	at         time.Time
}

// Journal records every frame in the message log and publishes it as an
// event. It is a session.Observer: frames are queued without blocking the
// connection and written by a single worker, so they are stored in the
// order they crossed the wire. Frames arriving while the queue is full are
// dropped and counted.
type Journal struct {
	store     JournalStore
	publisher events.EventPublisher

	queue chan journalEntry
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewJournal starts a journal. store may be nil to only publish.
func NewJournal(store JournalStore, publisher events.EventPublisher, queueSize int) *Journal {
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	if queueSize <= 0 {
		queueSize = DefaultJournalQueue
	}
	j := &Journal{
		store:     store,
		publisher: publisher,
		queue:     make(chan journalEntry, queueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go j.run()
	return j
}

// FrameReceived implements session.Observer.
func (j *Journal) FrameReceived(ev session.FrameEvent) {
	j.enqueue(journalEntry{message: events.NewMessageEvent(ev.StationID, events.DirectionInbound, ev.Message, ev.Action, ev.At), at: ev.At})
}

// FrameSent implements session.Observer.
func (j *Journal) FrameSent(ev session.FrameEvent) {
	j.enqueue(journalEntry{message: events.NewMessageEvent(ev.StationID, events.DirectionOutbound, ev.Message, ev.Action, ev.At), at: ev.At})
}

// StationConnected implements session.ConnectionObserver.
func (j *Journal) StationConnected(stationID string, at time.Time) {
	j.enqueue(journalEntry{connection: events.NewConnectionEvent(stationID, true, at), at: at})
}

// StationDisconnected implements session.ConnectionObserver.
func (j *Journal) StationDisconnected(stationID string, at time.Time) {
	j.enqueue(journalEntry{connection: events.NewConnectionEvent(stationID, false, at), at: at})
}

func (j *Journal) enqueue(e journalEntry) {
	select {
	case <-j.stop:
		return
	default:
	}
	select {
	case j.queue <- e:
	default:
		metrics.RecordJournalDrop()
		slog.Warn(fmt.Sprintf("%s - queue full, dropping journal entry", journalLogPrefix))
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for {
		select {
		case e := <-j.queue:
			j.write(e)
		case <-j.stop:
			for {
				select {
				case e := <-j.queue:
					j.write(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(e journalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.connection != nil {
		if err := j.publisher.PublishConnection(ctx, e.connection); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to publish connection event of %s: %v", journalLogPrefix, e.connection.StationID, err))
		}
		return
	}

	ev := e.message
	if j.store != nil {
		if _, err := j.store.InsertMessage(ctx, messageRecord(ev, e.at)); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to journal %s frame %s of %s: %v", journalLogPrefix, ev.Direction, ev.UniqueID, ev.StationID, err))
		}
	}
	if err := j.publisher.PublishMessage(ctx, ev); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish frame %s of %s: %v", journalLogPrefix, ev.UniqueID, ev.StationID, err))
	}
}

// Close stops accepting entries, writes what is queued and waits for the
// worker.
func (j *Journal) Close() {
	j.once.Do(func() { close(j.stop) })
	<-j.done
}

func messageRecord(ev *events.MessageEvent, at time.Time) db.MessageRecord {
	r := db.MessageRecord{
		ChargePointID:    ev.StationID,
		Direction:        ev.Direction,
		MessageType:      ev.MessageType,
		UniqueID:         ev.UniqueID,
		Action:           ev.Action,
		Payload:          ev.Payload,
		ErrorCode:        ev.ErrorCode,
		ErrorDescription: ev.ErrorDescription,
		Created:          at,
	}
	// error details are kept as the payload of a CallError row
	if len(ev.ErrorDetails) > 0 {
		if b, err := json.Marshal(ev.ErrorDetails); err == nil {
			r.Payload = b
		}
	}
	return r
}
