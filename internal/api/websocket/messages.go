package websocket

import (
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Device-related messages
	MessageTypeStatistics    MessageType = "device_statistics"
	MessageTypeDeviceError   MessageType = "device_error"
	MessageTypeControlResult MessageType = "control_result"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"

	// Connection handshake
	MessageTypeAuth        MessageType = "auth"
	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeAuthFailed  MessageType = "auth_failed"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	DeviceID  string      `json:"device_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// StatisticsData is the payload of a device_statistics message.
type StatisticsData struct {
	Device     types.DeviceInfo          `json:"device"`
	Statistics *types.ExtendedStatistics `json:"statistics"`
}

type DeviceErrorData struct {
	Device types.DeviceInfo `json:"device"`
	Error  string           `json:"error"`
}

type ControlResultData struct {
	Device     types.DeviceInfo             `json:"device"`
	Properties []types.ControllableProperty `json:"properties"`
	Success    bool                         `json:"success"`
	Error      string                       `json:"error,omitempty"`
}

// clientMessage is what clients send: auth first, then subscriptions.
type clientMessage struct {
	Type      MessageType `json:"type"`
	Token     string      `json:"token,omitempty"`
	DeviceIDs []string    `json:"device_ids,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewStatisticsMessage(device types.DeviceInfo, stats *types.ExtendedStatistics) Message {
	msg := NewMessage(MessageTypeStatistics, StatisticsData{Device: device, Statistics: stats})
	msg.DeviceID = device.ID.String()
	return msg
}

func NewDeviceErrorMessage(device types.DeviceInfo, err error) Message {
	msg := NewMessage(MessageTypeDeviceError, DeviceErrorData{Device: device, Error: err.Error()})
	msg.DeviceID = device.ID.String()
	return msg
}

func NewControlResultMessage(device types.DeviceInfo, cps []types.ControllableProperty, err error) Message {
	data := ControlResultData{Device: device, Properties: cps, Success: err == nil}
	if err != nil {
		data.Error = err.Error()
	}
	msg := NewMessage(MessageTypeControlResult, data)
	msg.DeviceID = device.ID.String()
	return msg
}
