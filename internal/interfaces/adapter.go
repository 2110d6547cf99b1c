package interfaces

import (
	"context"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
)

// DeviceAdapter is what the host needs from a device driver. Implementations
// are not safe for concurrent use; the devices manager serializes calls.
type DeviceAdapter interface {
	Authenticate(ctx context.Context) error
	GetMultipleStatistics(ctx context.Context) (*types.ExtendedStatistics, error)
	ControlProperty(ctx context.Context, cp types.ControllableProperty) error
	ControlProperties(ctx context.Context, cps []types.ControllableProperty) error
	Ping(ctx context.Context) (time.Duration, error)
}
