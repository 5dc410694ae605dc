package csms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/catalog"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
	"github.com/morezero/ocpp-central-system/pkg/session"
)

const commandsLogPrefix = "csms:commands"

var (
	// ErrInvalidCommand wraps the protocol error of a command rejected
	// before it was sent.
	ErrInvalidCommand = errors.New("csms: invalid command")
	// ErrInvalidConfirmation wraps the protocol error of a confirmation
	// that does not match its action.
	ErrInvalidConfirmation = errors.New("csms: invalid confirmation")
)

// Caller issues calls to connected stations. *session.Manager satisfies it.
type Caller interface {
	Call(ctx context.Context, stationID, action string, payload any, opts ...session.CallOption) (json.RawMessage, error)
}

// Commands issues central-system-initiated actions. Requests are validated
// before they are sent and confirmations are decoded into their catalog
// type.
type Commands struct {
	caller  Caller
	catalog *catalog.Catalog
}

// NewCommands creates a Commands. A nil catalog means the OCPP 1.6 catalog.
func NewCommands(caller Caller, cat *catalog.Catalog) *Commands {
	if cat == nil {
		cat = catalog.New()
	}
	return &Commands{caller: caller, catalog: cat}
}

func issue[Conf any](ctx context.Context, c *Commands, stationID, action string, req any) (*Conf, error) {
	if err := c.catalog.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, action, err)
	}
	raw, err := c.caller.Call(ctx, stationID, action, req)
	if err != nil {
		return nil, err
	}
	v, err := c.catalog.DecodeConfirmation(action, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s from %s: %w", ErrInvalidConfirmation, action, stationID, err)
	}
	conf, ok := v.(*Conf)
	if !ok {
		return nil, fmt.Errorf("%s - unexpected confirmation type %T for %s", commandsLogPrefix, v, action)
	}
	return conf, nil
}

func (c *Commands) CancelReservation(ctx context.Context, stationID string, req *catalog.CancelReservationRequest) (*catalog.CancelReservationConfirmation, error) {
	return issue[catalog.CancelReservationConfirmation](ctx, c, stationID, catalog.ActionCancelReservation, req)
}

func (c *Commands) ChangeAvailability(ctx context.Context, stationID string, req *catalog.ChangeAvailabilityRequest) (*catalog.ChangeAvailabilityConfirmation, error) {
	return issue[catalog.ChangeAvailabilityConfirmation](ctx, c, stationID, catalog.ActionChangeAvailability, req)
}

func (c *Commands) ChangeConfiguration(ctx context.Context, stationID string, req *catalog.ChangeConfigurationRequest) (*catalog.ChangeConfigurationConfirmation, error) {
	return issue[catalog.ChangeConfigurationConfirmation](ctx, c, stationID, catalog.ActionChangeConfiguration, req)
}

func (c *Commands) ClearCache(ctx context.Context, stationID string) (*catalog.ClearCacheConfirmation, error) {
	return issue[catalog.ClearCacheConfirmation](ctx, c, stationID, catalog.ActionClearCache, &catalog.ClearCacheRequest{})
}

func (c *Commands) ClearChargingProfile(ctx context.Context, stationID string, req *catalog.ClearChargingProfileRequest) (*catalog.ClearChargingProfileConfirmation, error) {
	return issue[catalog.ClearChargingProfileConfirmation](ctx, c, stationID, catalog.ActionClearChargingProfile, req)
}

func (c *Commands) DataTransfer(ctx context.Context, stationID string, req *catalog.DataTransferRequest) (*catalog.DataTransferConfirmation, error) {
	return issue[catalog.DataTransferConfirmation](ctx, c, stationID, catalog.ActionDataTransfer, req)
}

func (c *Commands) GetCompositeSchedule(ctx context.Context, stationID string, req *catalog.GetCompositeScheduleRequest) (*catalog.GetCompositeScheduleConfirmation, error) {
	return issue[catalog.GetCompositeScheduleConfirmation](ctx, c, stationID, catalog.ActionGetCompositeSchedule, req)
}

func (c *Commands) GetConfiguration(ctx context.Context, stationID string, req *catalog.GetConfigurationRequest) (*catalog.GetConfigurationConfirmation, error) {
	return issue[catalog.GetConfigurationConfirmation](ctx, c, stationID, catalog.ActionGetConfiguration, req)
}

func (c *Commands) GetDiagnostics(ctx context.Context, stationID string, req *catalog.GetDiagnosticsRequest) (*catalog.GetDiagnosticsConfirmation, error) {
	return issue[catalog.GetDiagnosticsConfirmation](ctx, c, stationID, catalog.ActionGetDiagnostics, req)
}

func (c *Commands) GetLocalListVersion(ctx context.Context, stationID string) (*catalog.GetLocalListVersionConfirmation, error) {
	return issue[catalog.GetLocalListVersionConfirmation](ctx, c, stationID, catalog.ActionGetLocalListVersion, &catalog.GetLocalListVersionRequest{})
}

func (c *Commands) RemoteStartTransaction(ctx context.Context, stationID string, req *catalog.RemoteStartTransactionRequest) (*catalog.RemoteStartTransactionConfirmation, error) {
	return issue[catalog.RemoteStartTransactionConfirmation](ctx, c, stationID, catalog.ActionRemoteStartTransaction, req)
}

func (c *Commands) RemoteStopTransaction(ctx context.Context, stationID string, req *catalog.RemoteStopTransactionRequest) (*catalog.RemoteStopTransactionConfirmation, error) {
	return issue[catalog.RemoteStopTransactionConfirmation](ctx, c, stationID, catalog.ActionRemoteStopTransaction, req)
}

func (c *Commands) ReserveNow(ctx context.Context, stationID string, req *catalog.ReserveNowRequest) (*catalog.ReserveNowConfirmation, error) {
	return issue[catalog.ReserveNowConfirmation](ctx, c, stationID, catalog.ActionReserveNow, req)
}

func (c *Commands) Reset(ctx context.Context, stationID string, req *catalog.ResetRequest) (*catalog.ResetConfirmation, error) {
	return issue[catalog.ResetConfirmation](ctx, c, stationID, catalog.ActionReset, req)
}

func (c *Commands) SendLocalList(ctx context.Context, stationID string, req *catalog.SendLocalListRequest) (*catalog.SendLocalListConfirmation, error) {
	return issue[catalog.SendLocalListConfirmation](ctx, c, stationID, catalog.ActionSendLocalList, req)
}

func (c *Commands) SetChargingProfile(ctx context.Context, stationID string, req *catalog.SetChargingProfileRequest) (*catalog.SetChargingProfileConfirmation, error) {
	return issue[catalog.SetChargingProfileConfirmation](ctx, c, stationID, catalog.ActionSetChargingProfile, req)
}

func (c *Commands) TriggerMessage(ctx context.Context, stationID string, req *catalog.TriggerMessageRequest) (*catalog.TriggerMessageConfirmation, error) {
	return issue[catalog.TriggerMessageConfirmation](ctx, c, stationID, catalog.ActionTriggerMessage, req)
}

func (c *Commands) UnlockConnector(ctx context.Context, stationID string, req *catalog.UnlockConnectorRequest) (*catalog.UnlockConnectorConfirmation, error) {
	return issue[catalog.UnlockConnectorConfirmation](ctx, c, stationID, catalog.ActionUnlockConnector, req)
}

func (c *Commands) UpdateFirmware(ctx context.Context, stationID string, req *catalog.UpdateFirmwareRequest) (*catalog.UpdateFirmwareConfirmation, error) {
	return issue[catalog.UpdateFirmwareConfirmation](ctx, c, stationID, catalog.ActionUpdateFirmware, req)
}

// IssueOptions controls a generic Issue.
type IssueOptions struct {
	// NoWait returns once the call is written.
	NoWait bool
	// Timeout overrides the session call timeout when positive.
	Timeout time.Duration
	// Raw sends params as given, skipping the request and confirmation
	// schemas. Params must still be a JSON object.
	Raw bool
}

// Issue sends an action given as raw JSON parameters. The action must be
// one the central system may initiate and params must decode into its
// request type unless opts.Raw is set. The confirmation is validated and
// returned as raw JSON; with NoWait the result is nil.
func (c *Commands) Issue(ctx context.Context, stationID, action string, params json.RawMessage, opts IssueOptions) (json.RawMessage, error) {
	e, ok := c.catalog.Lookup(action)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, ocppj.NewError(ocppj.NotImplemented, fmt.Sprintf("unknown action %s", action)))
	}
	if e.Initiator&catalog.InitiatedByCentralSystem == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, ocppj.NewError(ocppj.NotSupported, fmt.Sprintf("%s is not initiated by the central system", action)))
	}
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	var req any = params
	if opts.Raw {
		if !isJSONObject(params) {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, action,
				ocppj.NewError(ocppj.FormationViolation, "params must be a JSON object"))
		}
	} else {
		decoded, err := c.catalog.DecodeRequest(action, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, action, err)
		}
		req = decoded
	}

	var callOpts []session.CallOption
	if opts.Timeout > 0 {
		callOpts = append(callOpts, session.WithTimeout(opts.Timeout))
	}
	if opts.NoWait {
		callOpts = append(callOpts, session.WithoutAwait())
	}
	raw, err := c.caller.Call(ctx, stationID, action, req, callOpts...)
	if err != nil || opts.NoWait || opts.Raw {
		return raw, err
	}
	if _, err := c.catalog.DecodeConfirmation(action, raw); err != nil {
		return nil, fmt.Errorf("%w: %s from %s: %w", ErrInvalidConfirmation, action, stationID, err)
	}
	return raw, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
