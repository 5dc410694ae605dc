package csms

import (
	"context"
	"sync"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/bootstrap"
	"github.com/morezero/ocpp-central-system/pkg/db"
)

// MemoryStore is a Store and JournalStore kept in process memory. It backs
// the central system when no database is configured.
type MemoryStore struct {
	mu           sync.Mutex
	chargePoints map[string]*db.ChargePoint
	connectors   map[string]map[int]db.ConnectorStatus
	idTags       map[string]db.IDTag
	transactions map[int]*db.Transaction
	nextTxID     int
	samples      []db.MeterSample
	messages     []db.MessageRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chargePoints: make(map[string]*db.ChargePoint),
		connectors:   make(map[string]map[int]db.ConnectorStatus),
		idTags:       make(map[string]db.IDTag),
		transactions: make(map[int]*db.Transaction),
		nextTxID:     1,
	}
}

// Seed loads charge points and id tags from a seed config.
func (m *MemoryStore) Seed(cfg *bootstrap.SeedConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cp := range cfg.ChargePoints {
		if _, ok := m.chargePoints[cp.ID]; !ok {
			m.chargePoints[cp.ID] = &db.ChargePoint{ID: cp.ID, Vendor: cp.Vendor, Model: cp.Model, RegistrationStatus: "Pending"}
		}
		if cp.Description != "" {
			d := cp.Description
			m.chargePoints[cp.ID].Description = &d
		}
	}
	for _, t := range cfg.IDTags {
		tag := db.IDTag{IDTag: t.IDTag, Status: string(t.AuthorizationStatus()), ExpiryDate: t.Expiry}
		if t.ParentIDTag != "" {
			p := t.ParentIDTag
			tag.ParentIDTag = &p
		}
		m.idTags[t.IDTag] = tag
	}
}

func (m *MemoryStore) chargePoint(id string) *db.ChargePoint {
	cp, ok := m.chargePoints[id]
	if !ok {
		cp = &db.ChargePoint{ID: id, RegistrationStatus: "Pending"}
		m.chargePoints[id] = cp
	}
	return cp
}

func (m *MemoryStore) UpsertChargePoint(_ context.Context, p db.UpsertChargePointParams) (*db.ChargePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.chargePoint(p.ID)
	cp.Vendor, cp.Model = p.Vendor, p.Model
	keep := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	keep(&cp.SerialNumber, p.SerialNumber)
	keep(&cp.ChargeBoxSerial, p.ChargeBoxSerial)
	keep(&cp.FirmwareVersion, p.FirmwareVersion)
	keep(&cp.Iccid, p.Iccid)
	keep(&cp.Imsi, p.Imsi)
	keep(&cp.MeterType, p.MeterType)
	keep(&cp.MeterSerialNumber, p.MeterSerialNumber)
	cp.RegistrationStatus = p.RegistrationStatus
	boot := p.BootTime
	cp.LastBoot = &boot
	cp.Modified = boot
	out := *cp
	return &out, nil
}

func (m *MemoryStore) TouchChargePoint(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargePoint(id).LastHeartbeat = &at
	return nil
}

func (m *MemoryStore) UpdateFirmwareStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargePoint(id).FirmwareStatus = &status
	return nil
}

func (m *MemoryStore) UpdateDiagnosticsStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargePoint(id).DiagnosticsStatus = &status
	return nil
}

// ChargePoint returns a copy of the stored charge point.
func (m *MemoryStore) ChargePoint(id string) (db.ChargePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.chargePoints[id]
	if !ok {
		return db.ChargePoint{}, false
	}
	return *cp, true
}

func (m *MemoryStore) UpsertConnectorStatus(_ context.Context, s db.ConnectorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectors[s.ChargePointID] == nil {
		m.connectors[s.ChargePointID] = make(map[int]db.ConnectorStatus)
	}
	m.connectors[s.ChargePointID][s.ConnectorID] = s
	return nil
}

// Connector returns the last reported state of a connector.
func (m *MemoryStore) Connector(stationID string, connector int) (db.ConnectorStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.connectors[stationID][connector]
	return s, ok
}

func (m *MemoryStore) GetIDTag(_ context.Context, tag string) (*db.IDTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.idTags[tag]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MemoryStore) StartTransaction(_ context.Context, p db.StartTransactionParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextTxID
	m.nextTxID++
	m.transactions[id] = &db.Transaction{
		ID:            id,
		ChargePointID: p.ChargePointID,
		ConnectorID:   p.ConnectorID,
		IDTag:         p.IDTag,
		ReservationID: p.ReservationID,
		MeterStart:    p.MeterStart,
		StartTime:     p.StartTime,
	}
	return id, nil
}

func (m *MemoryStore) StopTransaction(_ context.Context, p db.StopTransactionParams) (*db.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[p.TransactionID]
	if !ok || tx.ChargePointID != p.ChargePointID || !tx.Open() {
		return nil, nil
	}
	meter, at := p.MeterStop, p.StopTime
	tx.MeterStop, tx.StopTime = &meter, &at
	tx.StopReason, tx.StopIDTag = optional(p.Reason), optional(p.IDTag)
	out := *tx
	return &out, nil
}

// Transaction returns a copy of the stored transaction.
func (m *MemoryStore) Transaction(id int) (db.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return db.Transaction{}, false
	}
	return *tx, true
}

func (m *MemoryStore) InsertMeterValues(_ context.Context, samples []db.MeterSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	return nil
}

// MeterSamples returns every stored sample.
func (m *MemoryStore) MeterSamples() []db.MeterSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.MeterSample(nil), m.samples...)
}

// InsertMessage journals a frame, linking responses to their call the way
// the database does.
func (m *MemoryStore) InsertMessage(_ context.Context, r db.MessageRecord) (*db.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.messages) + 1)
	if r.MessageType != 2 {
		want := db.OppositeDirection(r.Direction)
		for i := len(m.messages) - 1; i >= 0; i-- {
			c := m.messages[i]
			if c.MessageType == 2 && c.ChargePointID == r.ChargePointID && c.UniqueID == r.UniqueID && c.Direction == want {
				id := c.ID
				r.CallID = &id
				break
			}
		}
	}
	m.messages = append(m.messages, r)
	return &r, nil
}

// Messages returns the journal in insertion order.
func (m *MemoryStore) Messages() []db.MessageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.MessageRecord(nil), m.messages...)
}
