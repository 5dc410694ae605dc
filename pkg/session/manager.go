package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/ocpp-central-system/pkg/metrics"
)

// ErrNotConnected is returned for calls to a station without a session.
var ErrNotConnected = errors.New("session: station not connected")

// Manager tracks the open session of every connected station. A station
// has at most one session; a reconnect replaces and closes the previous one.
type Manager struct {
	dispatcher Dispatcher
	cfg        Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions share d and cfg.
func NewManager(d Dispatcher, cfg Config) *Manager {
	return &Manager{
		dispatcher: d,
		cfg:        cfg.withDefaults(),
		sessions:   make(map[string]*Session),
	}
}

// Open starts a session for stationID over t, closing any session the
// station already had.
func (m *Manager) Open(stationID string, t Transport) *Session {
	s := New(stationID, t, m.dispatcher, m.cfg)

	m.mu.Lock()
	old := m.sessions[stationID]
	m.sessions[stationID] = s
	m.mu.Unlock()

	if old != nil {
		slog.Info(fmt.Sprintf("%s - %s reconnected, replacing previous session", logPrefix, stationID))
		old.Close()
	} else {
		metrics.StationConnected()
	}
	if co, ok := m.cfg.Observer.(ConnectionObserver); ok {
		co.StationConnected(stationID, m.cfg.Clock.Now())
	}
	return s
}

// Release closes s and forgets it, unless a newer session for the same
// station has already replaced it.
func (m *Manager) Release(s *Session) {
	m.mu.Lock()
	current := m.sessions[s.id] == s
	if current {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()

	s.Close()
	if current {
		m.disconnected(s.id)
	}
}

func (m *Manager) disconnected(stationID string) {
	metrics.StationDisconnected()
	if co, ok := m.cfg.Observer.(ConnectionObserver); ok {
		co.StationDisconnected(stationID, m.cfg.Clock.Now())
	}
}

// Get returns the open session for stationID.
func (m *Manager) Get(stationID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[stationID]
	return s, ok
}

// Stations lists connected station ids, sorted.
func (m *Manager) Stations() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Call issues a call on the station's current session.
func (m *Manager) Call(ctx context.Context, stationID, action string, payload any, opts ...CallOption) (json.RawMessage, error) {
	s, ok := m.Get(stationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, stationID)
	}
	return s.Call(ctx, action, payload, opts...)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
		m.disconnected(s.id)
	}
}
