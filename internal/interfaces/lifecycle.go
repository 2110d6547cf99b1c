package interfaces

import (
	"context"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State          string `json:"state"`
	DeviceCount    int    `json:"device_count"`
	PollingDevices int    `json:"polling_devices"`
	HealthyDevices int    `json:"healthy_devices"`
	ClientCount    int    `json:"websocket_clients"`
	Error          string `json:"error,omitempty"`
}

// DeviceService is the device side of the API surface.
type DeviceService interface {
	ListDevices() []types.DeviceInfo
	GetDevice(id uuid.UUID) (types.DeviceInfo, bool)
	Statistics(ctx context.Context, id uuid.UUID, refresh bool) (*types.ExtendedStatistics, error)
	Control(ctx context.Context, id uuid.UUID, cp types.ControllableProperty) error
	ControlBatch(ctx context.Context, id uuid.UUID, cps []types.ControllableProperty) error
	Ping(ctx context.Context, id uuid.UUID) (time.Duration, error)
}

type LifecycleManager interface {
	Devices() DeviceService
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
