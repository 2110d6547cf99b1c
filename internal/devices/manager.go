package devices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/interfaces"
	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdapterFactory builds the driver for one inventory device.
type AdapterFactory func(conn types.ConnectionConfig, logger *zap.Logger) (interfaces.DeviceAdapter, error)

// Observer receives the outcome of polls and controls. Methods are called
// synchronously from the goroutine that talked to the device.
type Observer interface {
	StatisticsCollected(ctx context.Context, device types.DeviceInfo, stats *types.ExtendedStatistics)
	PollFailed(ctx context.Context, device types.DeviceInfo, err error)
	ControlApplied(ctx context.Context, device types.DeviceInfo, cps []types.ControllableProperty, err error)
}

// Defaults fill in what an inventory entry leaves unset.
type Defaults struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	VerifyTLS      bool
}

type managedDevice struct {
	id           uuid.UUID
	name         string
	conn         types.ConnectionConfig
	pollInterval time.Duration
	adapter      interfaces.DeviceAdapter

	// callMu serializes adapter calls; the adapter holds session state.
	callMu sync.Mutex

	stateMu    sync.RWMutex
	last       *types.ExtendedStatistics
	lastPollAt *time.Time
	lastErr    error
}

type Manager struct {
	factory   AdapterFactory
	defaults  Defaults
	devices   map[uuid.UUID]*managedDevice
	pollers   map[uuid.UUID]*Poller
	observers []Observer
	mu        sync.RWMutex
	logger    *zap.Logger
	now       func() time.Time
}

func NewManager(factory AdapterFactory, defaults Defaults, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory:  factory,
		defaults: defaults,
		devices:  make(map[uuid.UUID]*managedDevice),
		pollers:  make(map[uuid.UUID]*Poller),
		logger:   logger,
		now:      time.Now,
	}
}

// AddObserver registers o for every later poll and control outcome.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// AddDevice builds the adapter for def and registers it.
func (m *Manager) AddDevice(def types.DeviceDefinition) (uuid.UUID, error) {
	conn := def.Connection
	if conn.Timeout <= 0 {
		conn.Timeout = m.defaults.RequestTimeout
	}
	if m.defaults.VerifyTLS {
		conn.VerifyTLS = true
	}

	interval := def.PollInterval
	if interval <= 0 {
		interval = m.defaults.PollInterval
	}

	id := DeviceID(def.Name)

	m.mu.RLock()
	_, exists := m.devices[id]
	m.mu.RUnlock()
	if exists {
		return uuid.Nil, fmt.Errorf("device already registered: %s", def.Name)
	}

	adapter, err := m.factory(conn, m.logger.With(zap.String("device", def.Name)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create adapter for %s: %w", def.Name, err)
	}

	m.mu.Lock()
	m.devices[id] = &managedDevice{
		id:           id,
		name:         def.Name,
		conn:         conn,
		pollInterval: interval,
		adapter:      adapter,
	}
	m.mu.Unlock()

	m.logger.Info("Device loaded",
		zap.String("name", def.Name),
		zap.String("host", conn.Host),
		zap.String("id", id.String()))

	return id, nil
}

// LoadInventory registers every enabled device. A device that cannot be set
// up is logged and skipped; the count of loaded devices is returned.
func (m *Manager) LoadInventory(defs []types.DeviceDefinition) int {
	loaded := 0
	for _, def := range defs {
		if !def.IsEnabled() {
			m.logger.Info("Device disabled, skipping", zap.String("name", def.Name))
			continue
		}
		if _, err := m.AddDevice(def); err != nil {
			m.logger.Error("Failed to load device",
				zap.String("name", def.Name),
				zap.Error(err))
			continue
		}
		loaded++
	}
	return loaded
}

// StartPoller starts the poller for a device
func (m *Manager) StartPoller(deviceID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, exists := m.devices[deviceID]
	if !exists {
		return fmt.Errorf("%w: %s", types.ErrDeviceNotFound, deviceID)
	}
	if p, running := m.pollers[deviceID]; running && p.IsRunning() {
		return nil
	}

	poller := NewPoller(m, device.id, device.name, device.pollInterval, m.logger)
	if err := poller.Start(); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	m.pollers[deviceID] = poller

	return nil
}

// StartAllPollers starts a poller for every registered device.
func (m *Manager) StartAllPollers() {
	for _, info := range m.ListDevices() {
		if err := m.StartPoller(info.ID); err != nil {
			m.logger.Error("Failed to start poller",
				zap.String("device", info.Name),
				zap.Error(err))
		}
	}
}

// Poll collects statistics from the device now and publishes the outcome.
func (m *Manager) Poll(ctx context.Context, deviceID uuid.UUID) (*types.ExtendedStatistics, error) {
	device, err := m.device(deviceID)
	if err != nil {
		return nil, err
	}

	device.callMu.Lock()
	stats, err := device.adapter.GetMultipleStatistics(ctx)
	device.callMu.Unlock()

	now := m.now()
	device.stateMu.Lock()
	device.lastPollAt = &now
	device.lastErr = err
	if err == nil {
		device.last = stats
	}
	device.stateMu.Unlock()

	info := m.info(device)
	for _, o := range m.observerList() {
		if err != nil {
			o.PollFailed(ctx, info, err)
		} else {
			o.StatisticsCollected(ctx, info, stats)
		}
	}

	return stats, err
}

// Statistics returns the last collected statistics, or polls when refresh
// is set.
func (m *Manager) Statistics(ctx context.Context, deviceID uuid.UUID, refresh bool) (*types.ExtendedStatistics, error) {
	if refresh {
		return m.Poll(ctx, deviceID)
	}

	device, err := m.device(deviceID)
	if err != nil {
		return nil, err
	}

	device.stateMu.RLock()
	defer device.stateMu.RUnlock()
	if device.last == nil {
		return nil, types.ErrNoStatistics
	}
	return device.last, nil
}

// Control runs one control on the device.
func (m *Manager) Control(ctx context.Context, deviceID uuid.UUID, cp types.ControllableProperty) error {
	return m.control(ctx, deviceID, []types.ControllableProperty{cp}, func(a interfaces.DeviceAdapter) error {
		return a.ControlProperty(ctx, cp)
	})
}

// ControlBatch runs cps in order and stops at the first failure.
func (m *Manager) ControlBatch(ctx context.Context, deviceID uuid.UUID, cps []types.ControllableProperty) error {
	return m.control(ctx, deviceID, cps, func(a interfaces.DeviceAdapter) error {
		return a.ControlProperties(ctx, cps)
	})
}

func (m *Manager) control(ctx context.Context, deviceID uuid.UUID, cps []types.ControllableProperty, run func(interfaces.DeviceAdapter) error) error {
	device, err := m.device(deviceID)
	if err != nil {
		return err
	}

	device.callMu.Lock()
	err = run(device.adapter)
	device.callMu.Unlock()

	info := m.info(device)
	for _, o := range m.observerList() {
		o.ControlApplied(ctx, info, cps, err)
	}

	if err != nil {
		m.logger.Warn("Control failed",
			zap.String("device", device.name),
			zap.Int("properties", len(cps)),
			zap.Error(err))
	}
	return err
}

// Ping measures the round trip to the device.
func (m *Manager) Ping(ctx context.Context, deviceID uuid.UUID) (time.Duration, error) {
	device, err := m.device(deviceID)
	if err != nil {
		return 0, err
	}
	return device.adapter.Ping(ctx)
}

// GetDevice returns device by ID
func (m *Manager) GetDevice(deviceID uuid.UUID) (types.DeviceInfo, bool) {
	device, err := m.device(deviceID)
	if err != nil {
		return types.DeviceInfo{}, false
	}
	return m.info(device), true
}

// ListDevices returns all devices ordered by name
func (m *Manager) ListDevices() []types.DeviceInfo {
	m.mu.RLock()
	devices := make([]*managedDevice, 0, len(m.devices))
	for _, device := range m.devices {
		devices = append(devices, device)
	}
	m.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].name < devices[j].name })

	infos := make([]types.DeviceInfo, 0, len(devices))
	for _, device := range devices {
		infos = append(infos, m.info(device))
	}
	return infos
}

// StopAll stops all pollers and waits for running polls to finish.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	pollers := make([]*Poller, 0, len(m.pollers))
	for _, poller := range m.pollers {
		pollers = append(pollers, poller)
	}
	m.pollers = make(map[uuid.UUID]*Poller)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, poller := range pollers {
			poller.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping pollers: %w", ctx.Err())
	}
}

func (m *Manager) device(deviceID uuid.UUID) (*managedDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[deviceID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrDeviceNotFound, deviceID)
	}
	return device, nil
}

func (m *Manager) observerList() []Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Observer(nil), m.observers...)
}

func (m *Manager) info(device *managedDevice) types.DeviceInfo {
	m.mu.RLock()
	poller, polling := m.pollers[device.id]
	m.mu.RUnlock()

	protocol := device.conn.Protocol
	if protocol == "" {
		protocol = "https"
	}

	info := types.DeviceInfo{
		ID:           device.id,
		Name:         device.name,
		Host:         device.conn.Host,
		Protocol:     protocol,
		PollInterval: device.pollInterval,
		Polling:      polling && poller.IsRunning(),
	}

	device.stateMu.RLock()
	if device.lastPollAt != nil {
		at := *device.lastPollAt
		info.LastPollAt = &at
	}
	if device.lastErr != nil {
		info.LastError = device.lastErr.Error()
	}
	device.stateMu.RUnlock()

	return info
}
