package storage

import (
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
)

// StatisticsSnapshot is one stored poll result.
type StatisticsSnapshot struct {
	ID          int64            `json:"id"`
	DeviceID    uuid.UUID        `json:"device_id"`
	DeviceName  string           `json:"device_name"`
	CollectedAt time.Time        `json:"collected_at"`
	Statistics  types.Statistics `json:"statistics"` // JSONB
}

// ControlEvent is the audit record of one control request.
type ControlEvent struct {
	ID         int64                        `json:"id"`
	DeviceID   uuid.UUID                    `json:"device_id"`
	DeviceName string                       `json:"device_name"`
	Properties []types.ControllableProperty `json:"properties"` // JSONB
	Success    bool                         `json:"success"`
	Error      string                       `json:"error,omitempty"`
	CreatedAt  time.Time                    `json:"created_at"`
}
