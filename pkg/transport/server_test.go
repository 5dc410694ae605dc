package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/morezero/ocpp-central-system/pkg/catalog"
	"github.com/morezero/ocpp-central-system/pkg/dispatcher"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
	"github.com/morezero/ocpp-central-system/pkg/session"
)

const testPrefix = "transport:server_test"

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	reg := dispatcher.NewRegistry(catalog.New())
	reg.Handle(catalog.ActionHeartbeat, func(context.Context, *dispatcher.Request) (any, error) {
		return &catalog.HeartbeatConfirmation{CurrentTime: catalog.NewDateTime(time.Now())}, nil
	})
	mgr := session.NewManager(reg, session.Config{})
	srv, err := NewServer(mgr, Options{PathPrefix: "/ocpp/"})
	if err != nil {
		t.Fatalf("%s - NewServer() error = %v", testPrefix, err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		mgr.CloseAll()
		ts.Close()
	})
	return ts, mgr
}

func dial(t *testing.T, ts *httptest.Server, path string, protocols ...string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	d := websocket.Dialer{Subprotocols: protocols, HandshakeTimeout: 5 * time.Second}
	return d.Dial(url, nil)
}

func waitForStation(t *testing.T, mgr *session.Manager, id string) *session.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := mgr.Get(id); ok {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s - station %s never registered", testPrefix, id)
	return nil
}

func readMessage(t *testing.T, c *websocket.Conn) ocppj.Message {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("%s - ReadMessage() error = %v", testPrefix, err)
	}
	m, err := ocppj.Decode(data)
	if err != nil {
		t.Fatalf("%s - server sent undecodable frame %s: %v", testPrefix, data, err)
	}
	return m
}

func TestServer_HeartbeatRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	c, resp, err := dial(t, ts, "/ocpp/CP001", "ocpp1.6")
	if err != nil {
		t.Fatalf("%s - Dial() error = %v", testPrefix, err)
	}
	defer c.Close()
	if got := resp.Header.Get("Sec-WebSocket-Protocol"); got != "ocpp1.6" {
		t.Errorf("%s - negotiated subprotocol = %q, want ocpp1.6", testPrefix, got)
	}

	if err := c.WriteMessage(websocket.TextMessage, []byte(`[2,"hb1","Heartbeat",{}]`)); err != nil {
		t.Fatal(err)
	}
	res, ok := readMessage(t, c).(*ocppj.CallResult)
	if !ok || res.ID != "hb1" {
		t.Fatalf("%s - response = %#v", testPrefix, res)
	}
}

func TestServer_OutboundCall(t *testing.T) {
	ts, mgr := newTestServer(t)

	c, _, err := dial(t, ts, "/ocpp/CP002", "ocpp1.6")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	waitForStation(t, mgr, "CP002")

	type result struct {
		payload json.RawMessage
		err     error
	}
	done := make(chan result, 1)
	go func() {
		p, err := mgr.Call(context.Background(), "CP002", catalog.ActionReset, &catalog.ResetRequest{Type: catalog.ResetTypeSoft})
		done <- result{p, err}
	}()

	call, ok := readMessage(t, c).(*ocppj.Call)
	if !ok || call.Action != catalog.ActionReset {
		t.Fatalf("%s - station received %#v", testPrefix, call)
	}
	reply := fmt.Sprintf(`[3,%q,{"status":"Accepted"}]`, call.ID)
	if err := c.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-done:
		if r.err != nil || string(r.payload) != `{"status":"Accepted"}` {
			t.Errorf("%s - Call() = %s, %v", testPrefix, r.payload, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - Call() did not return", testPrefix)
	}
}

func TestServer_DisconnectDrainsPendingCalls(t *testing.T) {
	ts, mgr := newTestServer(t)

	c, _, err := dial(t, ts, "/ocpp/CP003", "ocpp1.6")
	if err != nil {
		t.Fatal(err)
	}
	waitForStation(t, mgr, "CP003")

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Call(context.Background(), "CP003", catalog.ActionClearCache, nil)
		done <- err
	}()
	readMessage(t, c)
	c.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ocppj.ErrConnectionClosed) {
			t.Errorf("%s - err = %v, want ErrConnectionClosed", testPrefix, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - pending call not drained on disconnect", testPrefix)
	}
}

func TestServer_ReconnectReplacesSession(t *testing.T) {
	ts, mgr := newTestServer(t)

	first, _, err := dial(t, ts, "/ocpp/CP004", "ocpp1.6")
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	old := waitForStation(t, mgr, "CP004")

	second, _, err := dial(t, ts, "/ocpp/CP004", "ocpp1.6")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	select {
	case <-old.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - previous session not closed on reconnect", testPrefix)
	}
	cur := waitForStation(t, mgr, "CP004")
	if cur == old {
		t.Error("manager still holds the replaced session")
	}

	// the old socket is closed by the server
	_ = first.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("expected old connection to be closed")
	}
}

func TestServer_Rejections(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		protocols  []string
		wantStatus int
	}{
		{name: "missing station id", path: "/ocpp/", protocols: []string{"ocpp1.6"}, wantStatus: http.StatusNotFound},
		{name: "wrong prefix", path: "/other/CP1", protocols: []string{"ocpp1.6"}, wantStatus: http.StatusNotFound},
		{name: "station id with illegal chars", path: "/ocpp/CP%201", protocols: []string{"ocpp1.6"}, wantStatus: http.StatusNotFound},
		{name: "unsupported subprotocol", path: "/ocpp/CP1", protocols: []string{"ocpp2.0.1"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, resp, err := dial(t, ts, tt.path, tt.protocols...)
			if err == nil {
				c.Close()
				t.Fatalf("%s - Dial() succeeded, want rejection", testPrefix)
			}
			if !errors.Is(err, websocket.ErrBadHandshake) {
				t.Errorf("%s - err = %v, want ErrBadHandshake", testPrefix, err)
			}
			if resp == nil || resp.StatusCode != tt.wantStatus {
				t.Errorf("%s - status = %v, want %d", testPrefix, resp, tt.wantStatus)
			}
		})
	}
}

func TestServer_NoSubprotocolAccepted(t *testing.T) {
	ts, mgr := newTestServer(t)

	c, _, err := dial(t, ts, "/ocpp/legacy-1")
	if err != nil {
		t.Fatalf("%s - Dial() error = %v", testPrefix, err)
	}
	defer c.Close()
	waitForStation(t, mgr, "legacy-1")
}

func TestStationID(t *testing.T) {
	srv, err := NewServer(session.NewManager(nil, session.Config{}), Options{PathPrefix: "/ocpp"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{path: "/ocpp/CP001", want: "CP001", wantOK: true},
		{path: "/ocpp/CP001/", want: "CP001", wantOK: true},
		{path: "/ocpp/site-3:bay_2.a", want: "site-3:bay_2.a", wantOK: true},
		{path: "/ocpp/", wantOK: false},
		{path: "/ocpp/a/b", wantOK: false},
		{path: "/ocpp/" + strings.Repeat("x", 65), wantOK: false},
		{path: "/elsewhere/CP001", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := srv.StationID(tt.path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("%s - StationID(%q) = %q, %v; want %q, %v", testPrefix, tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}
