package tcp

import (
	"fmt"
	"time"

	"wmshub/internal/warehouse"
)

// MessageType is the 4-byte code at the front of every frame.
type MessageType uint32

const (
	MsgPackageReceived     MessageType = 0x01
	MsgPackageProcessed    MessageType = 0x02
	MsgPackageLoaded       MessageType = 0x03
	MsgPackageStatusReq    MessageType = 0x04
	MsgPackageStatusResp   MessageType = 0x05
	MsgWarehouseStatusReq  MessageType = 0x06
	MsgWarehouseStatusResp MessageType = 0x07
	MsgHeartbeat           MessageType = 0x08
	MsgCancelPackageReq    MessageType = 0x10
	MsgCancelPackageResp   MessageType = 0x11
	MsgError               MessageType = 0xFF
)

// MsgPackageUpdate is the code broadcast frames travel on.
const MsgPackageUpdate = MsgPackageProcessed

var messageNames = map[MessageType]string{
	MsgPackageReceived:     "PACKAGE_RECEIVED",
	MsgPackageProcessed:    "PACKAGE_PROCESSED",
	MsgPackageLoaded:       "PACKAGE_LOADED",
	MsgPackageStatusReq:    "PACKAGE_STATUS_REQ",
	MsgPackageStatusResp:   "PACKAGE_STATUS_RESP",
	MsgWarehouseStatusReq:  "WAREHOUSE_STATUS_REQ",
	MsgWarehouseStatusResp: "WAREHOUSE_STATUS_RESP",
	MsgHeartbeat:           "HEARTBEAT",
	MsgCancelPackageReq:    "CANCEL_PACKAGE_REQ",
	MsgCancelPackageResp:   "CANCEL_PACKAGE_RESP",
	MsgError:               "ERROR",
}

func (t MessageType) String() string {
	if name, ok := messageNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint32(t))
}

// PackageUpdateType marks broadcast payloads.
const PackageUpdateType = "PACKAGE_UPDATE"

// request payloads, as sent by clients

type PackageReceivedRequest struct {
	PackageID       string  `json:"package_id,omitempty"`
	OrderID         string  `json:"order_id"`
	ExternalOrderID string  `json:"external_order_id,omitempty"`
	ClientID        string  `json:"client_id"`
	Weight          float64 `json:"weight"`
	Dimensions      string  `json:"dimensions"`
	SpecialHandling bool    `json:"special_handling,omitempty"`
}

type PackageRef struct {
	PackageID string `json:"package_id"`
}

type PackageLoadedRequest struct {
	PackageID string `json:"package_id"`
	VehicleID string `json:"vehicle_id"`
}

type CancelPackageRequest struct {
	PackageID string `json:"package_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

// response payloads

type PackageReceivedResponse struct {
	PackageID    string           `json:"package_id"`
	Status       warehouse.Status `json:"status"`
	AssignedZone string           `json:"assigned_zone"`
	Message      string           `json:"message"`
}

type PackageProcessedResponse struct {
	PackageID string           `json:"package_id"`
	Status    warehouse.Status `json:"status"`
	Message   string           `json:"message"`
}

type PackageLoadedResponse struct {
	PackageID string           `json:"package_id"`
	Status    warehouse.Status `json:"status"`
	VehicleID string           `json:"vehicle_id"`
	Message   string           `json:"message"`
}

type CancelPackageResponse struct {
	PackageID      string           `json:"package_id"`
	OrderID        string           `json:"order_id"`
	Status         warehouse.Status `json:"status"`
	PreviousStatus warehouse.Status `json:"previous_status"`
	Message        string           `json:"message"`
}

type HeartbeatResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// PackageUpdate is pushed to every connected client after a state change.
type PackageUpdate struct {
	Type      string            `json:"type"`
	Package   warehouse.Package `json:"package"`
	Timestamp time.Time         `json:"timestamp"`
}
