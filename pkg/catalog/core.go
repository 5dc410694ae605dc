package catalog

// Messages initiated by the charging station.

type AuthorizeRequest struct {
	IdTag string `json:"idTag" validate:"required,max=20"`
}

type AuthorizeConfirmation struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo" validate:"required"`
}

type BootNotificationRequest struct {
	ChargeBoxSerialNumber   string `json:"chargeBoxSerialNumber,omitempty" validate:"max=25"`
	ChargePointModel        string `json:"chargePointModel" validate:"required,max=20"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty" validate:"max=25"`
	ChargePointVendor       string `json:"chargePointVendor" validate:"required,max=20"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty" validate:"max=50"`
	Iccid                   string `json:"iccid,omitempty" validate:"max=20"`
	Imsi                    string `json:"imsi,omitempty" validate:"max=20"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty" validate:"max=25"`
	MeterType               string `json:"meterType,omitempty" validate:"max=25"`
}

type BootNotificationConfirmation struct {
	CurrentTime *DateTime          `json:"currentTime" validate:"required"`
	Interval    int                `json:"interval" validate:"gte=0"`
	Status      RegistrationStatus `json:"status" validate:"required,registrationStatus"`
}

type DataTransferRequest struct {
	VendorId  string `json:"vendorId" validate:"required,max=255"`
	MessageId string `json:"messageId,omitempty" validate:"max=50"`
	Data      any    `json:"data,omitempty"`
}

type DataTransferConfirmation struct {
	Status DataTransferStatus `json:"status" validate:"required,dataTransferStatus"`
	Data   any                `json:"data,omitempty"`
}

type DiagnosticsStatusNotificationRequest struct {
	Status DiagnosticsStatus `json:"status" validate:"required,diagnosticsStatus"`
}

type DiagnosticsStatusNotificationConfirmation struct{}

type FirmwareStatusNotificationRequest struct {
	Status FirmwareStatus `json:"status" validate:"required,firmwareStatus"`
}

type FirmwareStatusNotificationConfirmation struct{}

type HeartbeatRequest struct{}

type HeartbeatConfirmation struct {
	CurrentTime *DateTime `json:"currentTime" validate:"required"`
}

type MeterValuesRequest struct {
	ConnectorId   *int         `json:"connectorId" validate:"required,gte=0"`
	TransactionId *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue" validate:"required,min=1,dive"`
}

type MeterValuesConfirmation struct{}

type StartTransactionRequest struct {
	ConnectorId   int       `json:"connectorId" validate:"required,gt=0"`
	IdTag         string    `json:"idTag" validate:"required,max=20"`
	MeterStart    *int      `json:"meterStart" validate:"required"`
	ReservationId *int      `json:"reservationId,omitempty"`
	Timestamp     *DateTime `json:"timestamp" validate:"required"`
}

type StartTransactionConfirmation struct {
	IdTagInfo     *IdTagInfo `json:"idTagInfo" validate:"required"`
	TransactionId int        `json:"transactionId"`
}

type StatusNotificationRequest struct {
	ConnectorId     *int                 `json:"connectorId" validate:"required,gte=0"`
	ErrorCode       ChargePointErrorCode `json:"errorCode" validate:"required,chargePointErrorCode"`
	Info            string               `json:"info,omitempty" validate:"max=50"`
	Status          ChargePointStatus    `json:"status" validate:"required,chargePointStatus"`
	Timestamp       *DateTime            `json:"timestamp,omitempty"`
	VendorId        string               `json:"vendorId,omitempty" validate:"max=255"`
	VendorErrorCode string               `json:"vendorErrorCode,omitempty" validate:"max=50"`
}

type StatusNotificationConfirmation struct{}

type StopTransactionRequest struct {
	IdTag           string       `json:"idTag,omitempty" validate:"max=20"`
	MeterStop       *int         `json:"meterStop" validate:"required"`
	Timestamp       *DateTime    `json:"timestamp" validate:"required"`
	TransactionId   *int         `json:"transactionId" validate:"required"`
	Reason          Reason       `json:"reason,omitempty" validate:"omitempty,reason"`
	TransactionData []MeterValue `json:"transactionData,omitempty" validate:"omitempty,dive"`
}

type StopTransactionConfirmation struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}
