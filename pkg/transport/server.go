// Package transport accepts charging station WebSocket connections and
// feeds their text frames into sessions.
package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/morezero/ocpp-central-system/pkg/session"
)

const logPrefix = "transport:server"

const (
	DefaultPingInterval = 30 * time.Second
	DefaultWriteWait    = 10 * time.Second
	DefaultReadLimit    = 1 << 20
)

var stationIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// Options configures a Server. Zero fields take their defaults.
type Options struct {
	// PathPrefix is stripped from the request path; the remainder is the
	// station id.
	PathPrefix       string
	SubprotocolRange string
	// RequireSubprotocol rejects stations that offer no subprotocol at all.
	RequireSubprotocol bool
	PingInterval       time.Duration
	WriteWait          time.Duration
	ReadLimit          int64
}

// Server is an http.Handler that upgrades station connections.
type Server struct {
	manager    *session.Manager
	negotiator *Negotiator
	upgrader   websocket.Upgrader
	opts       Options
}

// NewServer creates a Server opening sessions on manager.
func NewServer(manager *session.Manager, opts Options) (*Server, error) {
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/ocpp/"
	}
	if !strings.HasSuffix(opts.PathPrefix, "/") {
		opts.PathPrefix += "/"
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	neg, err := NewNegotiator(opts.SubprotocolRange)
	if err != nil {
		return nil, err
	}
	return &Server{
		manager:    manager,
		negotiator: neg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts: opts,
	}, nil
}

// StationID extracts and validates the station id from a request path.
func (s *Server) StationID(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, s.opts.PathPrefix)
	if !ok {
		return "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	if !stationIDRegex.MatchString(rest) {
		return "", false
	}
	return rest, true
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stationID, ok := s.StationID(r.URL.Path)
	if !ok {
		slog.Warn(fmt.Sprintf("%s - rejected connection with invalid station path %q", logPrefix, r.URL.Path))
		http.Error(w, "invalid station id", http.StatusNotFound)
		return
	}

	header := http.Header{}
	offered := websocket.Subprotocols(r)
	if len(offered) > 0 || s.opts.RequireSubprotocol {
		proto, ok := s.negotiator.Select(offered)
		if !ok {
			slog.Warn(fmt.Sprintf("%s - %s offered no supported subprotocol: %v", logPrefix, stationID, offered))
			http.Error(w, "unsupported subprotocol", http.StatusBadRequest)
			return
		}
		header.Set("Sec-WebSocket-Protocol", proto)
	} else {
		slog.Warn(fmt.Sprintf("%s - %s connected without a subprotocol, assuming ocpp1.6", logPrefix, stationID))
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - problem initiating websocket for %s: %v", logPrefix, stationID, err))
		return
	}
	slog.Info(fmt.Sprintf("%s - %s connected from %s", logPrefix, stationID, r.RemoteAddr))

	c := newConn(conn, s.opts)
	sess := s.manager.Open(stationID, c)
	c.serve(sess)
	s.manager.Release(sess)
	slog.Info(fmt.Sprintf("%s - %s disconnected", logPrefix, stationID))
}
