package db

import (
	"encoding/json"
	"time"
)

// Message directions recorded in the journal.
const (
	DirectionInbound  = "C2S"
	DirectionOutbound = "S2C"
)

// ChargePoint represents a row in the charge_points table.
type ChargePoint struct {
	ID                 string     `json:"id"`
	Vendor             string     `json:"vendor"`
	Model              string     `json:"model"`
	SerialNumber       *string    `json:"serial_number,omitempty"`
	ChargeBoxSerial    *string    `json:"charge_box_serial,omitempty"`
	FirmwareVersion    *string    `json:"firmware_version,omitempty"`
	Iccid              *string    `json:"iccid,omitempty"`
	Imsi               *string    `json:"imsi,omitempty"`
	MeterType          *string    `json:"meter_type,omitempty"`
	MeterSerialNumber  *string    `json:"meter_serial_number,omitempty"`
	Description        *string    `json:"description,omitempty"`
	RegistrationStatus string     `json:"registration_status"`
	FirmwareStatus     *string    `json:"firmware_status,omitempty"`
	DiagnosticsStatus  *string    `json:"diagnostics_status,omitempty"`
	LastBoot           *time.Time `json:"last_boot,omitempty"`
	LastHeartbeat      *time.Time `json:"last_heartbeat,omitempty"`
	Created            time.Time  `json:"created"`
	Modified           time.Time  `json:"modified"`
}

// ConnectorStatus represents a row in the connector_status table.
// Connector 0 is the charge point itself.
type ConnectorStatus struct {
	ChargePointID   string     `json:"charge_point_id"`
	ConnectorID     int        `json:"connector_id"`
	Status          string     `json:"status"`
	ErrorCode       string     `json:"error_code"`
	Info            *string    `json:"info,omitempty"`
	VendorID        *string    `json:"vendor_id,omitempty"`
	VendorErrorCode *string    `json:"vendor_error_code,omitempty"`
	StatusTime      *time.Time `json:"status_time,omitempty"`
	Modified        time.Time  `json:"modified"`
}

// IDTag represents a row in the id_tags table.
type IDTag struct {
	IDTag       string     `json:"id_tag"`
	Status      string     `json:"status"`
	ParentIDTag *string    `json:"parent_id_tag,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// Transaction represents a row in the transactions table.
type Transaction struct {
	ID            int        `json:"id"`
	ChargePointID string     `json:"charge_point_id"`
	ConnectorID   int        `json:"connector_id"`
	IDTag         string     `json:"id_tag"`
	ReservationID *int       `json:"reservation_id,omitempty"`
	MeterStart    int        `json:"meter_start"`
	StartTime     time.Time  `json:"start_time"`
	MeterStop     *int       `json:"meter_stop,omitempty"`
	StopTime      *time.Time `json:"stop_time,omitempty"`
	StopReason    *string    `json:"stop_reason,omitempty"`
	StopIDTag     *string    `json:"stop_id_tag,omitempty"`
}

// Open reports whether the transaction has not been stopped.
func (t *Transaction) Open() bool {
	return t.StopTime == nil
}

// MeterSample is one sampled value of a MeterValues or StopTransaction
// report, flattened into a row of the meter_values table.
type MeterSample struct {
	ChargePointID string
	ConnectorID   int
	TransactionID *int
	SampledAt     time.Time
	Value         string
	Context       string
	Format        string
	Measurand     string
	Phase         string
	Location      string
	Unit          string
}

// MessageRecord represents a row in the message_log table.
type MessageRecord struct {
	ID               int64           `json:"id"`
	ChargePointID    string          `json:"charge_point_id"`
	Direction        string          `json:"direction"`
	MessageType      int             `json:"message_type"`
	UniqueID         string          `json:"unique_id"`
	Action           string          `json:"action,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ErrorCode        string          `json:"error_code,omitempty"`
	ErrorDescription string          `json:"error_description,omitempty"`
	CallID           *int64          `json:"call_id,omitempty"`
	Created          time.Time       `json:"created"`
}

// OppositeDirection returns the direction a response to a message travels.
func OppositeDirection(direction string) string {
	if direction == DirectionInbound {
		return DirectionOutbound
	}
	return DirectionInbound
}
