package catalog

// Messages initiated by the central system.

type CancelReservationRequest struct {
	ReservationId *int `json:"reservationId" validate:"required"`
}

type CancelReservationConfirmation struct {
	Status AcceptanceStatus `json:"status" validate:"required,acceptanceStatus"`
}

type ChangeAvailabilityRequest struct {
	ConnectorId *int             `json:"connectorId" validate:"required,gte=0"`
	Type        AvailabilityType `json:"type" validate:"required,availabilityType"`
}

type ChangeAvailabilityConfirmation struct {
	Status AvailabilityStatus `json:"status" validate:"required,availabilityStatus"`
}

type ChangeConfigurationRequest struct {
	Key   string `json:"key" validate:"required,max=50"`
	Value string `json:"value" validate:"required,max=500"`
}

type ChangeConfigurationConfirmation struct {
	Status ConfigurationStatus `json:"status" validate:"required,configurationStatus"`
}

type ClearCacheRequest struct{}

type ClearCacheConfirmation struct {
	Status AcceptanceStatus `json:"status" validate:"required,acceptanceStatus"`
}

type ClearChargingProfileRequest struct {
	Id                     *int                   `json:"id,omitempty"`
	ConnectorId            *int                   `json:"connectorId,omitempty" validate:"omitempty,gte=0"`
	ChargingProfilePurpose ChargingProfilePurpose `json:"chargingProfilePurpose,omitempty" validate:"omitempty,chargingProfilePurpose"`
	StackLevel             *int                   `json:"stackLevel,omitempty" validate:"omitempty,gte=0"`
}

type ClearChargingProfileConfirmation struct {
	Status ClearChargingProfileStatus `json:"status" validate:"required,clearChargingProfileStatus"`
}

type GetCompositeScheduleRequest struct {
	ConnectorId      *int             `json:"connectorId" validate:"required,gte=0"`
	Duration         *int             `json:"duration" validate:"required,gte=0"`
	ChargingRateUnit ChargingRateUnit `json:"chargingRateUnit,omitempty" validate:"omitempty,chargingRateUnit"`
}

type GetCompositeScheduleConfirmation struct {
	Status           AcceptanceStatus  `json:"status" validate:"required,acceptanceStatus"`
	ConnectorId      *int              `json:"connectorId,omitempty"`
	ScheduleStart    *DateTime         `json:"scheduleStart,omitempty"`
	ChargingSchedule *ChargingSchedule `json:"chargingSchedule,omitempty"`
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty" validate:"omitempty,dive,max=50"`
}

type GetConfigurationConfirmation struct {
	ConfigurationKey []KeyValue `json:"configurationKey,omitempty" validate:"omitempty,dive"`
	UnknownKey       []string   `json:"unknownKey,omitempty" validate:"omitempty,dive,max=50"`
}

type GetDiagnosticsRequest struct {
	Location      string    `json:"location" validate:"required"`
	Retries       *int      `json:"retries,omitempty" validate:"omitempty,gte=0"`
	RetryInterval *int      `json:"retryInterval,omitempty" validate:"omitempty,gte=0"`
	StartTime     *DateTime `json:"startTime,omitempty"`
	StopTime      *DateTime `json:"stopTime,omitempty"`
}

type GetDiagnosticsConfirmation struct {
	FileName string `json:"fileName,omitempty" validate:"max=255"`
}

type GetLocalListVersionRequest struct{}

type GetLocalListVersionConfirmation struct {
	ListVersion *int `json:"listVersion" validate:"required"`
}

type RemoteStartTransactionRequest struct {
	ConnectorId     *int             `json:"connectorId,omitempty" validate:"omitempty,gt=0"`
	IdTag           string           `json:"idTag" validate:"required,max=20"`
	ChargingProfile *ChargingProfile `json:"chargingProfile,omitempty"`
}

type RemoteStartTransactionConfirmation struct {
	Status AcceptanceStatus `json:"status" validate:"required,acceptanceStatus"`
}

type RemoteStopTransactionRequest struct {
	TransactionId *int `json:"transactionId" validate:"required"`
}

type RemoteStopTransactionConfirmation struct {
	Status AcceptanceStatus `json:"status" validate:"required,acceptanceStatus"`
}

type ReserveNowRequest struct {
	ConnectorId   *int      `json:"connectorId" validate:"required,gte=0"`
	ExpiryDate    *DateTime `json:"expiryDate" validate:"required"`
	IdTag         string    `json:"idTag" validate:"required,max=20"`
	ParentIdTag   string    `json:"parentIdTag,omitempty" validate:"max=20"`
	ReservationId *int      `json:"reservationId" validate:"required"`
}

type ReserveNowConfirmation struct {
	Status ReservationStatus `json:"status" validate:"required,reservationStatus"`
}

type ResetRequest struct {
	Type ResetType `json:"type" validate:"required,resetType"`
}

type ResetConfirmation struct {
	Status AcceptanceStatus `json:"status" validate:"required,acceptanceStatus"`
}

type SendLocalListRequest struct {
	ListVersion            *int                `json:"listVersion" validate:"required"`
	LocalAuthorizationList []AuthorizationData `json:"localAuthorizationList,omitempty" validate:"omitempty,dive"`
	UpdateType             UpdateType          `json:"updateType" validate:"required,updateType"`
}

type SendLocalListConfirmation struct {
	Status UpdateStatus `json:"status" validate:"required,updateStatus"`
}

type SetChargingProfileRequest struct {
	ConnectorId        *int             `json:"connectorId" validate:"required,gte=0"`
	CsChargingProfiles *ChargingProfile `json:"csChargingProfiles" validate:"required"`
}

type SetChargingProfileConfirmation struct {
	Status ChargingProfileStatus `json:"status" validate:"required,chargingProfileStatus"`
}

type TriggerMessageRequest struct {
	RequestedMessage MessageTrigger `json:"requestedMessage" validate:"required,messageTrigger"`
	ConnectorId      *int           `json:"connectorId,omitempty" validate:"omitempty,gte=0"`
}

type TriggerMessageConfirmation struct {
	Status TriggerMessageStatus `json:"status" validate:"required,triggerMessageStatus"`
}

type UnlockConnectorRequest struct {
	ConnectorId int `json:"connectorId" validate:"required,gt=0"`
}

type UnlockConnectorConfirmation struct {
	Status UnlockStatus `json:"status" validate:"required,unlockStatus"`
}

type UpdateFirmwareRequest struct {
	Location      string    `json:"location" validate:"required"`
	Retries       *int      `json:"retries,omitempty" validate:"omitempty,gte=0"`
	RetrieveDate  *DateTime `json:"retrieveDate" validate:"required"`
	RetryInterval *int      `json:"retryInterval,omitempty" validate:"omitempty,gte=0"`
}

type UpdateFirmwareConfirmation struct{}
