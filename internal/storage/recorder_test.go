package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeHistory struct {
	saved  []types.Statistics
	times  []time.Time
	events []ControlEvent
	err    error
}

func (f *fakeHistory) SaveStatistics(ctx context.Context, deviceID uuid.UUID, deviceName string, collectedAt time.Time, stats types.Statistics) error {
	f.saved = append(f.saved, stats)
	f.times = append(f.times, collectedAt)
	return f.err
}

func (f *fakeHistory) RecordControlEvent(ctx context.Context, event ControlEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func TestRecorderStoresStatisticsWithPollTime(t *testing.T) {
	store := &fakeHistory{}
	r := NewRecorder(store, zap.NewNop())

	polledAt := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	device := types.DeviceInfo{ID: uuid.New(), Name: "Boardroom", LastPollAt: &polledAt}
	r.StatisticsCollected(context.Background(), device, &types.ExtendedStatistics{
		Statistics: types.Statistics{"Device#model": "AM-3200"},
	})

	if len(store.saved) != 1 || store.saved[0]["Device#model"] != "AM-3200" {
		t.Fatalf("unexpected saved statistics: %+v", store.saved)
	}
	if !store.times[0].Equal(polledAt) {
		t.Fatalf("collectedAt = %v, want %v", store.times[0], polledAt)
	}
}

func TestRecorderRecordsControlOutcome(t *testing.T) {
	store := &fakeHistory{}
	r := NewRecorder(store, zap.NewNop())
	device := types.DeviceInfo{ID: uuid.New(), Name: "Boardroom"}
	cps := []types.ControllableProperty{{Property: "Device#reboot"}}

	r.ControlApplied(context.Background(), device, cps, nil)
	r.ControlApplied(context.Background(), device, cps, errors.New("POST Device/DeviceOperations: status 500"))

	if len(store.events) != 2 {
		t.Fatalf("events = %d, want 2", len(store.events))
	}
	if !store.events[0].Success || store.events[0].Error != "" {
		t.Fatalf("unexpected success event: %+v", store.events[0])
	}
	if store.events[1].Success || store.events[1].Error == "" {
		t.Fatalf("unexpected failure event: %+v", store.events[1])
	}
	if store.events[1].Properties[0].Property != "Device#reboot" {
		t.Fatalf("properties not recorded: %+v", store.events[1].Properties)
	}
}

func TestRecorderLogsWriteFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := &fakeHistory{err: errors.New("connection refused")}
	r := NewRecorder(store, zap.New(core))

	device := types.DeviceInfo{ID: uuid.New(), Name: "Boardroom"}
	r.StatisticsCollected(context.Background(), device, &types.ExtendedStatistics{Statistics: types.Statistics{}})
	r.ControlApplied(context.Background(), device, nil, nil)

	if logs.Len() != 2 {
		t.Fatalf("error logs = %d, want 2", logs.Len())
	}
}
