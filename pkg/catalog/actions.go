package catalog

const (
	ActionAuthorize                     = "Authorize"
	ActionBootNotification              = "BootNotification"
	ActionDataTransfer                  = "DataTransfer"
	ActionDiagnosticsStatusNotification = "DiagnosticsStatusNotification"
	ActionFirmwareStatusNotification    = "FirmwareStatusNotification"
	ActionHeartbeat                     = "Heartbeat"
	ActionMeterValues                   = "MeterValues"
	ActionStartTransaction              = "StartTransaction"
	ActionStatusNotification            = "StatusNotification"
	ActionStopTransaction               = "StopTransaction"

	ActionCancelReservation      = "CancelReservation"
	ActionChangeAvailability     = "ChangeAvailability"
	ActionChangeConfiguration    = "ChangeConfiguration"
	ActionClearCache             = "ClearCache"
	ActionClearChargingProfile   = "ClearChargingProfile"
	ActionGetCompositeSchedule   = "GetCompositeSchedule"
	ActionGetConfiguration       = "GetConfiguration"
	ActionGetDiagnostics         = "GetDiagnostics"
	ActionGetLocalListVersion    = "GetLocalListVersion"
	ActionRemoteStartTransaction = "RemoteStartTransaction"
	ActionRemoteStopTransaction  = "RemoteStopTransaction"
	ActionReserveNow             = "ReserveNow"
	ActionReset                  = "Reset"
	ActionSendLocalList          = "SendLocalList"
	ActionSetChargingProfile     = "SetChargingProfile"
	ActionTriggerMessage         = "TriggerMessage"
	ActionUnlockConnector        = "UnlockConnector"
	ActionUpdateFirmware         = "UpdateFirmware"
)

// Initiator says which side of the connection may send an action's request.
type Initiator int

const (
	InitiatedByStation Initiator = 1 << iota
	InitiatedByCentralSystem
)

// Entry describes one action: who may initiate it and how to allocate its
// request and confirmation types.
type Entry struct {
	Action       string
	Initiator    Initiator
	Request      func() any
	Confirmation func() any
}

func entry[Req, Conf any](action string, by Initiator) Entry {
	return Entry{
		Action:       action,
		Initiator:    by,
		Request:      func() any { return new(Req) },
		Confirmation: func() any { return new(Conf) },
	}
}

// Core16 is every action of the OCPP 1.6 Core, Firmware Management, Local
// Auth List Management, Reservation, Smart Charging and Remote Trigger
// profiles.
var Core16 = []Entry{
	entry[AuthorizeRequest, AuthorizeConfirmation](ActionAuthorize, InitiatedByStation),
	entry[BootNotificationRequest, BootNotificationConfirmation](ActionBootNotification, InitiatedByStation),
	entry[DataTransferRequest, DataTransferConfirmation](ActionDataTransfer, InitiatedByStation|InitiatedByCentralSystem),
	entry[DiagnosticsStatusNotificationRequest, DiagnosticsStatusNotificationConfirmation](ActionDiagnosticsStatusNotification, InitiatedByStation),
	entry[FirmwareStatusNotificationRequest, FirmwareStatusNotificationConfirmation](ActionFirmwareStatusNotification, InitiatedByStation),
	entry[HeartbeatRequest, HeartbeatConfirmation](ActionHeartbeat, InitiatedByStation),
	entry[MeterValuesRequest, MeterValuesConfirmation](ActionMeterValues, InitiatedByStation),
	entry[StartTransactionRequest, StartTransactionConfirmation](ActionStartTransaction, InitiatedByStation),
	entry[StatusNotificationRequest, StatusNotificationConfirmation](ActionStatusNotification, InitiatedByStation),
	entry[StopTransactionRequest, StopTransactionConfirmation](ActionStopTransaction, InitiatedByStation),

	entry[CancelReservationRequest, CancelReservationConfirmation](ActionCancelReservation, InitiatedByCentralSystem),
	entry[ChangeAvailabilityRequest, ChangeAvailabilityConfirmation](ActionChangeAvailability, InitiatedByCentralSystem),
	entry[ChangeConfigurationRequest, ChangeConfigurationConfirmation](ActionChangeConfiguration, InitiatedByCentralSystem),
	entry[ClearCacheRequest, ClearCacheConfirmation](ActionClearCache, InitiatedByCentralSystem),
	entry[ClearChargingProfileRequest, ClearChargingProfileConfirmation](ActionClearChargingProfile, InitiatedByCentralSystem),
	entry[GetCompositeScheduleRequest, GetCompositeScheduleConfirmation](ActionGetCompositeSchedule, InitiatedByCentralSystem),
	entry[GetConfigurationRequest, GetConfigurationConfirmation](ActionGetConfiguration, InitiatedByCentralSystem),
	entry[GetDiagnosticsRequest, GetDiagnosticsConfirmation](ActionGetDiagnostics, InitiatedByCentralSystem),
	entry[GetLocalListVersionRequest, GetLocalListVersionConfirmation](ActionGetLocalListVersion, InitiatedByCentralSystem),
	entry[RemoteStartTransactionRequest, RemoteStartTransactionConfirmation](ActionRemoteStartTransaction, InitiatedByCentralSystem),
	entry[RemoteStopTransactionRequest, RemoteStopTransactionConfirmation](ActionRemoteStopTransaction, InitiatedByCentralSystem),
	entry[ReserveNowRequest, ReserveNowConfirmation](ActionReserveNow, InitiatedByCentralSystem),
	entry[ResetRequest, ResetConfirmation](ActionReset, InitiatedByCentralSystem),
	entry[SendLocalListRequest, SendLocalListConfirmation](ActionSendLocalList, InitiatedByCentralSystem),
	entry[SetChargingProfileRequest, SetChargingProfileConfirmation](ActionSetChargingProfile, InitiatedByCentralSystem),
	entry[TriggerMessageRequest, TriggerMessageConfirmation](ActionTriggerMessage, InitiatedByCentralSystem),
	entry[UnlockConnectorRequest, UnlockConnectorConfirmation](ActionUnlockConnector, InitiatedByCentralSystem),
	entry[UpdateFirmwareRequest, UpdateFirmwareConfirmation](ActionUpdateFirmware, InitiatedByCentralSystem),
}
