package devices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/interfaces"
	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeAdapter struct {
	mu       sync.Mutex
	conn     types.ConnectionConfig
	polls    int
	controls []types.ControllableProperty
	pollErr  error
	ctrlErr  error
	polled   chan struct{}
}

func (f *fakeAdapter) Authenticate(ctx context.Context) error { return nil }

func (f *fakeAdapter) GetMultipleStatistics(ctx context.Context) (*types.ExtendedStatistics, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	err := f.pollErr
	f.mu.Unlock()

	if f.polled != nil {
		select {
		case f.polled <- struct{}{}:
		default:
		}
	}
	if err != nil {
		return nil, err
	}
	return &types.ExtendedStatistics{
		Statistics: types.Statistics{"Device#model": "AM-3200", "poll": string(rune('0' + n))},
	}, nil
}

func (f *fakeAdapter) ControlProperty(ctx context.Context, cp types.ControllableProperty) error {
	return f.ControlProperties(ctx, []types.ControllableProperty{cp})
}

func (f *fakeAdapter) ControlProperties(ctx context.Context, cps []types.ControllableProperty) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, cps...)
	return f.ctrlErr
}

func (f *fakeAdapter) Ping(ctx context.Context) (time.Duration, error) {
	return 3 * time.Millisecond, nil
}

type recordingObserver struct {
	mu        sync.Mutex
	collected []types.DeviceInfo
	failed    []error
	controls  [][]types.ControllableProperty
	ctrlErrs  []error
}

func (r *recordingObserver) StatisticsCollected(ctx context.Context, device types.DeviceInfo, stats *types.ExtendedStatistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collected = append(r.collected, device)
}

func (r *recordingObserver) PollFailed(ctx context.Context, device types.DeviceInfo, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func (r *recordingObserver) ControlApplied(ctx context.Context, device types.DeviceInfo, cps []types.ControllableProperty, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = append(r.controls, cps)
	r.ctrlErrs = append(r.ctrlErrs, err)
}

func newTestManager(t *testing.T, adapters map[string]*fakeAdapter) *Manager {
	t.Helper()

	factory := func(conn types.ConnectionConfig, logger *zap.Logger) (interfaces.DeviceAdapter, error) {
		a, ok := adapters[conn.Host]
		if !ok {
			return nil, errors.New("no adapter for host")
		}
		a.conn = conn
		return a, nil
	}
	return NewManager(factory, Defaults{PollInterval: time.Minute, RequestTimeout: 7 * time.Second}, zaptest.NewLogger(t))
}

func TestDeviceIDIsStable(t *testing.T) {
	if DeviceID("Boardroom") != DeviceID("Boardroom") {
		t.Fatalf("DeviceID must be deterministic")
	}
	if DeviceID("Boardroom") == DeviceID("Lobby") {
		t.Fatalf("different names must map to different IDs")
	}
	if DeviceID("Boardroom").Version() != 5 {
		t.Fatalf("DeviceID version = %d, want 5", DeviceID("Boardroom").Version())
	}
}

func TestAddDeviceAppliesDefaults(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(t, map[string]*fakeAdapter{"10.0.0.5": adapter})

	id, err := m.AddDevice(types.DeviceDefinition{Name: "Boardroom", Connection: types.ConnectionConfig{Host: "10.0.0.5"}})
	if err != nil {
		t.Fatalf("AddDevice() error: %v", err)
	}
	if id != DeviceID("Boardroom") {
		t.Fatalf("id = %s, want %s", id, DeviceID("Boardroom"))
	}
	if adapter.conn.Timeout != 7*time.Second {
		t.Fatalf("Timeout = %v, want 7s", adapter.conn.Timeout)
	}

	info, ok := m.GetDevice(id)
	if !ok {
		t.Fatalf("device not found")
	}
	if info.PollInterval != time.Minute || info.Protocol != "https" || info.Polling {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := m.AddDevice(types.DeviceDefinition{Name: "Boardroom", Connection: types.ConnectionConfig{Host: "10.0.0.5"}}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestLoadInventorySkipsDisabledAndBrokenDevices(t *testing.T) {
	disabled := false
	m := newTestManager(t, map[string]*fakeAdapter{"a": {}, "b": {}})

	loaded := m.LoadInventory([]types.DeviceDefinition{
		{Name: "A", Connection: types.ConnectionConfig{Host: "a"}},
		{Name: "B", Connection: types.ConnectionConfig{Host: "b"}, Enabled: &disabled},
		{Name: "C", Connection: types.ConnectionConfig{Host: "unknown"}},
	})
	if loaded != 1 {
		t.Fatalf("loaded = %d, want 1", loaded)
	}
	devices := m.ListDevices()
	if len(devices) != 1 || devices[0].Name != "A" {
		t.Fatalf("unexpected devices: %+v", devices)
	}
}

func TestPollStoresLastStatisticsAndNotifies(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(t, map[string]*fakeAdapter{"h": adapter})
	obs := &recordingObserver{}
	m.AddObserver(obs)

	id, err := m.AddDevice(types.DeviceDefinition{Name: "Lobby", Connection: types.ConnectionConfig{Host: "h"}})
	if err != nil {
		t.Fatalf("AddDevice() error: %v", err)
	}

	if _, err := m.Statistics(context.Background(), id, false); !errors.Is(err, types.ErrNoStatistics) {
		t.Fatalf("Statistics() before poll error = %v, want ErrNoStatistics", err)
	}

	stats, err := m.Statistics(context.Background(), id, true)
	if err != nil {
		t.Fatalf("Statistics(refresh) error: %v", err)
	}
	if stats.Statistics["Device#model"] != "AM-3200" {
		t.Fatalf("Device#model = %q", stats.Statistics["Device#model"])
	}

	cached, err := m.Statistics(context.Background(), id, false)
	if err != nil || cached != stats {
		t.Fatalf("cached statistics not returned: %v", err)
	}
	if adapter.polls != 1 {
		t.Fatalf("polls = %d, want 1", adapter.polls)
	}

	info, _ := m.GetDevice(id)
	if info.LastPollAt == nil || info.LastError != "" {
		t.Fatalf("unexpected info after poll: %+v", info)
	}
	if len(obs.collected) != 1 || obs.collected[0].ID != id {
		t.Fatalf("observer not notified: %+v", obs.collected)
	}
}

func TestPollFailureKeepsPreviousStatistics(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(t, map[string]*fakeAdapter{"h": adapter})
	obs := &recordingObserver{}
	m.AddObserver(obs)

	id, _ := m.AddDevice(types.DeviceDefinition{Name: "Lobby", Connection: types.ConnectionConfig{Host: "h"}})
	first, err := m.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}

	loginErr := &types.NotAuthorizedError{Message: "username and password combination is invalid"}
	adapter.mu.Lock()
	adapter.pollErr = loginErr
	adapter.mu.Unlock()

	if _, err := m.Poll(context.Background(), id); !errors.Is(err, loginErr) {
		t.Fatalf("Poll() error = %v, want %v", err, loginErr)
	}

	cached, err := m.Statistics(context.Background(), id, false)
	if err != nil || cached != first {
		t.Fatalf("previous statistics must survive a failed poll")
	}
	info, _ := m.GetDevice(id)
	if info.LastError == "" {
		t.Fatalf("LastError not recorded")
	}
	if len(obs.failed) != 1 {
		t.Fatalf("PollFailed calls = %d, want 1", len(obs.failed))
	}
}

func TestControlAndBatchReachAdapter(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(t, map[string]*fakeAdapter{"h": adapter})
	obs := &recordingObserver{}
	m.AddObserver(obs)
	id, _ := m.AddDevice(types.DeviceDefinition{Name: "Lobby", Connection: types.ConnectionConfig{Host: "h"}})

	if err := m.Control(context.Background(), id, types.ControllableProperty{Property: "Device#reboot"}); err != nil {
		t.Fatalf("Control() error: %v", err)
	}
	batch := []types.ControllableProperty{{Property: "Device#synchroniseTime"}, {Property: "Device#reboot"}}
	if err := m.ControlBatch(context.Background(), id, batch); err != nil {
		t.Fatalf("ControlBatch() error: %v", err)
	}

	if len(adapter.controls) != 3 || adapter.controls[1].Property != "Device#synchroniseTime" {
		t.Fatalf("unexpected controls: %+v", adapter.controls)
	}
	if len(obs.controls) != 2 || len(obs.controls[1]) != 2 {
		t.Fatalf("unexpected observed controls: %+v", obs.controls)
	}

	adapter.ctrlErr = &types.TransportError{Method: "POST", URI: "Device/DeviceOperations", StatusCode: 500}
	if err := m.Control(context.Background(), id, types.ControllableProperty{Property: "Device#reboot"}); err == nil {
		t.Fatalf("expected control error")
	}
	if obs.ctrlErrs[2] == nil {
		t.Fatalf("observer must see the control error")
	}
}

func TestUnknownDevice(t *testing.T) {
	m := newTestManager(t, nil)
	id := uuid.New()

	if _, err := m.Poll(context.Background(), id); !errors.Is(err, types.ErrDeviceNotFound) {
		t.Fatalf("Poll() error = %v, want ErrDeviceNotFound", err)
	}
	if err := m.Control(context.Background(), id, types.ControllableProperty{Property: "reboot"}); !errors.Is(err, types.ErrDeviceNotFound) {
		t.Fatalf("Control() error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := m.Ping(context.Background(), id); !errors.Is(err, types.ErrDeviceNotFound) {
		t.Fatalf("Ping() error = %v, want ErrDeviceNotFound", err)
	}
	if err := m.StartPoller(id); !errors.Is(err, types.ErrDeviceNotFound) {
		t.Fatalf("StartPoller() error = %v, want ErrDeviceNotFound", err)
	}
	if _, ok := m.GetDevice(id); ok {
		t.Fatalf("GetDevice() found unknown device")
	}
}

func TestPollerPollsImmediatelyAndStops(t *testing.T) {
	adapter := &fakeAdapter{polled: make(chan struct{}, 1)}
	m := newTestManager(t, map[string]*fakeAdapter{"h": adapter})
	id, _ := m.AddDevice(types.DeviceDefinition{Name: "Lobby", Connection: types.ConnectionConfig{Host: "h"}, PollInterval: time.Hour})

	if err := m.StartPoller(id); err != nil {
		t.Fatalf("StartPoller() error: %v", err)
	}

	select {
	case <-adapter.polled:
	case <-time.After(2 * time.Second):
		t.Fatalf("first poll did not run immediately")
	}

	info, _ := m.GetDevice(id)
	if !info.Polling {
		t.Fatalf("device should report polling")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("StopAll() error: %v", err)
	}

	info, _ = m.GetDevice(id)
	if info.Polling {
		t.Fatalf("device still polling after StopAll")
	}
}

func TestPingDelegatesToAdapter(t *testing.T) {
	m := newTestManager(t, map[string]*fakeAdapter{"h": {}})
	id, _ := m.AddDevice(types.DeviceDefinition{Name: "Lobby", Connection: types.ConnectionConfig{Host: "h"}})

	rtt, err := m.Ping(context.Background(), id)
	if err != nil || rtt != 3*time.Millisecond {
		t.Fatalf("Ping() = %v, %v", rtt, err)
	}
}
