package transport

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/morezero/ocpp-central-system/pkg/session"
)

// conn adapts a WebSocket connection to session.Transport. Writes are
// serialized by the session; pings use WriteControl, which gorilla allows
// concurrently with other writers.
type conn struct {
	ws   *websocket.Conn
	opts Options
}

func newConn(ws *websocket.Conn, opts Options) *conn {
	return &conn{ws: ws, opts: opts}
}

func (c *conn) Send(frame []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// serve runs the read loop until the connection fails or the session is
// closed, for example by a reconnect of the same station.
func (c *conn) serve(sess *session.Session) {
	defer c.ws.Close()

	pongWait := c.opts.PingInterval * 2
	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go c.ping(sess, stop)

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn(fmt.Sprintf("%s - read from %s failed: %v", logPrefix, sess.ID(), err))
			}
			return
		}
		// a frame from the station proves liveness as well as a pong
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			slog.Warn(fmt.Sprintf("%s - ignoring non-text frame from %s", logPrefix, sess.ID()))
			continue
		}
		sess.HandleFrame(data)
	}
}

func (c *conn) ping(sess *session.Session, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-sess.Done():
			// replaced or shut down: unblock the read loop
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(c.opts.WriteWait))
			c.ws.Close()
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				slog.Debug(fmt.Sprintf("%s - failed to write ping to %s: %v", logPrefix, sess.ID(), err))
				c.ws.Close()
				return
			}
		}
	}
}
