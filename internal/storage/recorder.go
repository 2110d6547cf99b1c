package storage

import (
	"context"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryWriter is the part of PostgresClient the Recorder writes to.
type HistoryWriter interface {
	SaveStatistics(ctx context.Context, deviceID uuid.UUID, deviceName string, collectedAt time.Time, stats types.Statistics) error
	RecordControlEvent(ctx context.Context, event ControlEvent) error
}

const writeTimeout = 5 * time.Second

// Recorder persists poll and control outcomes. Write failures are logged and
// never reach the poller.
type Recorder struct {
	store  HistoryWriter
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(store HistoryWriter, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

func (r *Recorder) StatisticsCollected(ctx context.Context, device types.DeviceInfo, stats *types.ExtendedStatistics) {
	collectedAt := r.now()
	if device.LastPollAt != nil {
		collectedAt = *device.LastPollAt
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.store.SaveStatistics(ctx, device.ID, device.Name, collectedAt, stats.Statistics); err != nil {
		r.logger.Error("Failed to store statistics",
			zap.String("device", device.Name),
			zap.Error(err))
	}
}

func (r *Recorder) PollFailed(ctx context.Context, device types.DeviceInfo, err error) {}

func (r *Recorder) ControlApplied(ctx context.Context, device types.DeviceInfo, cps []types.ControllableProperty, err error) {
	event := ControlEvent{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Properties: cps,
		Success:    err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if storeErr := r.store.RecordControlEvent(ctx, event); storeErr != nil {
		r.logger.Error("Failed to record control event",
			zap.String("device", device.Name),
			zap.Error(storeErr))
	}
}
