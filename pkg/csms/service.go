// Package csms holds the central system's business side: handlers for the
// messages charging stations send, typed wrappers for the commands it sends
// them, and the journal that records their traffic.
package csms

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/juju/clock"

	"github.com/morezero/ocpp-central-system/pkg/catalog"
	"github.com/morezero/ocpp-central-system/pkg/db"
	"github.com/morezero/ocpp-central-system/pkg/dispatcher"
)

const logPrefix = "csms:service"

// DefaultHeartbeatInterval is returned in BootNotification confirmations.
const DefaultHeartbeatInterval = 300 * time.Second

// Store persists what stations report. *db.Repository satisfies it, as does
// MemoryStore.
type Store interface {
	UpsertChargePoint(ctx context.Context, p db.UpsertChargePointParams) (*db.ChargePoint, error)
	TouchChargePoint(ctx context.Context, id string, at time.Time) error
	UpdateFirmwareStatus(ctx context.Context, id, status string) error
	UpdateDiagnosticsStatus(ctx context.Context, id, status string) error
	UpsertConnectorStatus(ctx context.Context, s db.ConnectorStatus) error
	GetIDTag(ctx context.Context, tag string) (*db.IDTag, error)
	StartTransaction(ctx context.Context, p db.StartTransactionParams) (int, error)
	StopTransaction(ctx context.Context, p db.StopTransactionParams) (*db.Transaction, error)
	InsertMeterValues(ctx context.Context, samples []db.MeterSample) error
}

// Config tunes the handlers. Zero fields take their defaults.
type Config struct {
	HeartbeatInterval time.Duration
	// AcceptUnknownTags authorizes id tags missing from the store.
	AcceptUnknownTags bool
	// DataTransferVendors lists the vendor ids DataTransfer accepts. Empty
	// accepts every vendor.
	DataTransferVendors []string
	Clock               clock.Clock
}

// Service answers the calls charging stations initiate.
type Service struct {
	store Store
	cfg   Config
}

// NewService creates a Service over store.
func NewService(store Store, cfg Config) *Service {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Service{store: store, cfg: cfg}
}

// Register installs a handler for every station-initiated action.
func (s *Service) Register(reg *dispatcher.Registry) {
	reg.Register(catalog.ActionAuthorize, dispatcher.Typed(s.Authorize))
	reg.Register(catalog.ActionBootNotification, dispatcher.Typed(s.BootNotification))
	reg.Register(catalog.ActionDataTransfer, dispatcher.Typed(s.DataTransfer))
	reg.Register(catalog.ActionDiagnosticsStatusNotification, dispatcher.Typed(s.DiagnosticsStatusNotification))
	reg.Register(catalog.ActionFirmwareStatusNotification, dispatcher.Typed(s.FirmwareStatusNotification))
	reg.Register(catalog.ActionHeartbeat, dispatcher.Typed(s.Heartbeat))
	reg.Register(catalog.ActionMeterValues, dispatcher.Typed(s.MeterValues))
	reg.Register(catalog.ActionStartTransaction, dispatcher.Typed(s.StartTransaction))
	reg.Register(catalog.ActionStatusNotification, dispatcher.Typed(s.StatusNotification))
	reg.Register(catalog.ActionStopTransaction, dispatcher.Typed(s.StopTransaction))
}

func (s *Service) now() *catalog.DateTime {
	return catalog.NewDateTime(s.cfg.Clock.Now())
}

// Authorize looks the id tag up in the authorization list.
func (s *Service) Authorize(ctx context.Context, req *dispatcher.Request, p *catalog.AuthorizeRequest) (any, error) {
	info, err := s.idTagInfo(ctx, p.IdTag)
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%s - %s authorize %s: %s", logPrefix, req.StationID, p.IdTag, info.Status))
	return &catalog.AuthorizeConfirmation{IdTagInfo: info}, nil
}

// idTagInfo resolves a tag to its authorization verdict. Accepted tags past
// their expiry date are reported Expired.
func (s *Service) idTagInfo(ctx context.Context, tag string) (*catalog.IdTagInfo, error) {
	t, err := s.store.GetIDTag(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("%s - look up id tag: %w", logPrefix, err)
	}
	if t == nil {
		if s.cfg.AcceptUnknownTags {
			return &catalog.IdTagInfo{Status: catalog.AuthorizationStatusAccepted}, nil
		}
		return &catalog.IdTagInfo{Status: catalog.AuthorizationStatusInvalid}, nil
	}

	info := &catalog.IdTagInfo{Status: catalog.AuthorizationStatus(t.Status)}
	if t.ParentIDTag != nil {
		info.ParentIdTag = *t.ParentIDTag
	}
	if t.ExpiryDate != nil {
		info.ExpiryDate = catalog.NewDateTime(*t.ExpiryDate)
		if info.Status == catalog.AuthorizationStatusAccepted && !s.cfg.Clock.Now().Before(*t.ExpiryDate) {
			info.Status = catalog.AuthorizationStatusExpired
		}
	}
	return info, nil
}

// BootNotification registers the station. When the registration cannot be
// stored the station is told Pending and retries after the interval.
func (s *Service) BootNotification(ctx context.Context, req *dispatcher.Request, p *catalog.BootNotificationRequest) (any, error) {
	conf := &catalog.BootNotificationConfirmation{
		CurrentTime: s.now(),
		Interval:    int(s.cfg.HeartbeatInterval / time.Second),
		Status:      catalog.RegistrationStatusAccepted,
	}
	_, err := s.store.UpsertChargePoint(ctx, db.UpsertChargePointParams{
		ID:                 req.StationID,
		Vendor:             p.ChargePointVendor,
		Model:              p.ChargePointModel,
		SerialNumber:       p.ChargePointSerialNumber,
		ChargeBoxSerial:    p.ChargeBoxSerialNumber,
		FirmwareVersion:    p.FirmwareVersion,
		Iccid:              p.Iccid,
		Imsi:               p.Imsi,
		MeterType:          p.MeterType,
		MeterSerialNumber:  p.MeterSerialNumber,
		RegistrationStatus: string(catalog.RegistrationStatusAccepted),
		BootTime:           s.cfg.Clock.Now(),
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to register %s: %v", logPrefix, req.StationID, err))
		conf.Status = catalog.RegistrationStatusPending
		return conf, nil
	}
	slog.Info(fmt.Sprintf("%s - %s booted (%s %s, firmware %q)", logPrefix, req.StationID, p.ChargePointVendor, p.ChargePointModel, p.FirmwareVersion))
	return conf, nil
}

// Heartbeat returns the current time.
func (s *Service) Heartbeat(ctx context.Context, req *dispatcher.Request, _ *catalog.HeartbeatRequest) (any, error) {
	if err := s.store.TouchChargePoint(ctx, req.StationID, s.cfg.Clock.Now()); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to record heartbeat of %s: %v", logPrefix, req.StationID, err))
	}
	return &catalog.HeartbeatConfirmation{CurrentTime: s.now()}, nil
}

// StatusNotification stores the connector state.
func (s *Service) StatusNotification(ctx context.Context, req *dispatcher.Request, p *catalog.StatusNotificationRequest) (any, error) {
	st := db.ConnectorStatus{
		ChargePointID:   req.StationID,
		ConnectorID:     *p.ConnectorId,
		Status:          string(p.Status),
		ErrorCode:       string(p.ErrorCode),
		Info:            optional(p.Info),
		VendorID:        optional(p.VendorId),
		VendorErrorCode: optional(p.VendorErrorCode),
	}
	if p.Timestamp != nil {
		t := p.Timestamp.Time
		st.StatusTime = &t
	}
	if err := s.store.UpsertConnectorStatus(ctx, st); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to store status of %s/%d: %v", logPrefix, req.StationID, st.ConnectorID, err))
	}
	if p.ErrorCode != catalog.ChargePointErrorNoError {
		slog.Warn(fmt.Sprintf("%s - %s connector %d reports %s (%s)", logPrefix, req.StationID, st.ConnectorID, p.ErrorCode, p.Status))
	}
	return &catalog.StatusNotificationConfirmation{}, nil
}

// StartTransaction allocates a transaction id. The id is issued even when
// the tag is not accepted; the station then ends the transaction itself.
func (s *Service) StartTransaction(ctx context.Context, req *dispatcher.Request, p *catalog.StartTransactionRequest) (any, error) {
	info, err := s.idTagInfo(ctx, p.IdTag)
	if err != nil {
		return nil, err
	}
	id, err := s.store.StartTransaction(ctx, db.StartTransactionParams{
		ChargePointID: req.StationID,
		ConnectorID:   p.ConnectorId,
		IDTag:         p.IdTag,
		ReservationID: p.ReservationId,
		MeterStart:    *p.MeterStart,
		StartTime:     p.Timestamp.Time,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - start transaction: %w", logPrefix, err)
	}
	return &catalog.StartTransactionConfirmation{IdTagInfo: info, TransactionId: id}, nil
}

// StopTransaction closes the transaction and stores its transaction data.
func (s *Service) StopTransaction(ctx context.Context, req *dispatcher.Request, p *catalog.StopTransactionRequest) (any, error) {
	tx, err := s.store.StopTransaction(ctx, db.StopTransactionParams{
		ChargePointID: req.StationID,
		TransactionID: *p.TransactionId,
		MeterStop:     *p.MeterStop,
		StopTime:      p.Timestamp.Time,
		Reason:        string(p.Reason),
		IDTag:         p.IdTag,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - stop transaction: %w", logPrefix, err)
	}
	if tx == nil {
		slog.Warn(fmt.Sprintf("%s - %s stopped unknown or closed transaction %d", logPrefix, req.StationID, *p.TransactionId))
	}

	var connector int
	if tx != nil {
		connector = tx.ConnectorID
	}
	samples := flattenMeterValues(req.StationID, connector, p.TransactionId, p.TransactionData)
	if err := s.store.InsertMeterValues(ctx, samples); err != nil {
		return nil, fmt.Errorf("%s - store transaction data: %w", logPrefix, err)
	}

	conf := &catalog.StopTransactionConfirmation{}
	if p.IdTag != "" {
		if conf.IdTagInfo, err = s.idTagInfo(ctx, p.IdTag); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// MeterValues stores the sampled values.
func (s *Service) MeterValues(ctx context.Context, req *dispatcher.Request, p *catalog.MeterValuesRequest) (any, error) {
	samples := flattenMeterValues(req.StationID, *p.ConnectorId, p.TransactionId, p.MeterValue)
	if err := s.store.InsertMeterValues(ctx, samples); err != nil {
		return nil, fmt.Errorf("%s - store meter values: %w", logPrefix, err)
	}
	return &catalog.MeterValuesConfirmation{}, nil
}

// FirmwareStatusNotification records the firmware update progress.
func (s *Service) FirmwareStatusNotification(ctx context.Context, req *dispatcher.Request, p *catalog.FirmwareStatusNotificationRequest) (any, error) {
	if err := s.store.UpdateFirmwareStatus(ctx, req.StationID, string(p.Status)); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to store firmware status of %s: %v", logPrefix, req.StationID, err))
	}
	return &catalog.FirmwareStatusNotificationConfirmation{}, nil
}

// DiagnosticsStatusNotification records the diagnostics upload progress.
func (s *Service) DiagnosticsStatusNotification(ctx context.Context, req *dispatcher.Request, p *catalog.DiagnosticsStatusNotificationRequest) (any, error) {
	if err := s.store.UpdateDiagnosticsStatus(ctx, req.StationID, string(p.Status)); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to store diagnostics status of %s: %v", logPrefix, req.StationID, err))
	}
	return &catalog.DiagnosticsStatusNotificationConfirmation{}, nil
}

// DataTransfer accepts configured vendors.
func (s *Service) DataTransfer(_ context.Context, req *dispatcher.Request, p *catalog.DataTransferRequest) (any, error) {
	if len(s.cfg.DataTransferVendors) > 0 && !slices.Contains(s.cfg.DataTransferVendors, p.VendorId) {
		slog.Info(fmt.Sprintf("%s - %s sent data for unknown vendor %q", logPrefix, req.StationID, p.VendorId))
		return &catalog.DataTransferConfirmation{Status: catalog.DataTransferStatusUnknownVendorId}, nil
	}
	return &catalog.DataTransferConfirmation{Status: catalog.DataTransferStatusAccepted}, nil
}

func flattenMeterValues(stationID string, connector int, txID *int, values []catalog.MeterValue) []db.MeterSample {
	var out []db.MeterSample
	for _, mv := range values {
		for _, sv := range mv.SampledValue {
			out = append(out, db.MeterSample{
				ChargePointID: stationID,
				ConnectorID:   connector,
				TransactionID: txID,
				SampledAt:     mv.Timestamp.Time,
				Value:         sv.Value,
				Context:       string(sv.Context),
				Format:        string(sv.Format),
				Measurand:     string(sv.Measurand),
				Phase:         string(sv.Phase),
				Location:      string(sv.Location),
				Unit:          string(sv.Unit),
			})
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
