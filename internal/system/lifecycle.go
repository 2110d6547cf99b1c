package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/airmedia"
	"github.com/KevinKickass/airmedia-bridge/internal/api/health"
	"github.com/KevinKickass/airmedia-bridge/internal/api/rest"
	"github.com/KevinKickass/airmedia-bridge/internal/api/websocket"
	"github.com/KevinKickass/airmedia-bridge/internal/auth"
	"github.com/KevinKickass/airmedia-bridge/internal/config"
	"github.com/KevinKickass/airmedia-bridge/internal/devices"
	"github.com/KevinKickass/airmedia-bridge/internal/interfaces"
	"github.com/KevinKickass/airmedia-bridge/internal/storage"
	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"go.uber.org/zap"
)

const pruneInterval = time.Hour

// Option customizes a LifecycleManager.
type Option func(*LifecycleManager)

// WithAdapterFactory replaces the AirMedia driver, e.g. with a fake in tests.
func WithAdapterFactory(factory devices.AdapterFactory) Option {
	return func(lm *LifecycleManager) {
		lm.adapterFactory = factory
	}
}

type LifecycleManager struct {
	config         *config.Config
	storage        *storage.PostgresClient
	authService    *auth.AuthService
	adapterFactory devices.AdapterFactory
	deviceManager  *devices.Manager
	logger         *zap.Logger

	wsHub        *websocket.Hub
	healthServer *health.Server
	restServer   *rest.Server

	cancel context.CancelFunc
	bg     sync.WaitGroup

	stateMu      sync.RWMutex
	currentState SystemState
	lastErr      error

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewLifecycleManager wires every component. db may be nil when the history
// store is disabled.
func NewLifecycleManager(db *storage.PostgresClient, cfg *config.Config, logger *zap.Logger, opts ...Option) *LifecycleManager {
	lm := &LifecycleManager{
		config:       cfg,
		storage:      db,
		logger:       logger,
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
		adapterFactory: func(conn types.ConnectionConfig, logger *zap.Logger) (interfaces.DeviceAdapter, error) {
			adapter, err := airmedia.New(conn, logger)
			if err != nil {
				return nil, err
			}
			return adapter, nil
		},
	}
	for _, opt := range opts {
		opt(lm)
	}

	lm.authService = auth.NewAuthService(cfg.Auth, logger)
	lm.wsHub = websocket.NewHub(logger, lm.authService)
	lm.healthServer = health.NewServer(fmt.Sprintf(":%d", cfg.Server.GRPCPort), logger)
	lm.deviceManager = devices.NewManager(lm.adapterFactory, devices.Defaults{
		PollInterval:   cfg.AirMedia.PollInterval,
		RequestTimeout: cfg.AirMedia.RequestTimeout,
		VerifyTLS:      cfg.AirMedia.VerifyTLS,
	}, logger)

	lm.deviceManager.AddObserver(lm.wsHub)
	lm.deviceManager.AddObserver(lm.healthServer)

	var history rest.HistoryStore
	if db != nil {
		lm.deviceManager.AddObserver(storage.NewRecorder(db, logger))
		history = db
	}
	lm.restServer = rest.NewServer(cfg, lm, logger, lm.wsHub, lm.authService, history)

	return lm
}

// Start loads the inventory, starts the servers and then the pollers.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting AirMedia bridge")

	loader, err := devices.NewInventoryLoader()
	if err != nil {
		return lm.fail(fmt.Errorf("failed to create inventory loader: %w", err))
	}
	defs, err := loader.Load(lm.config.Devices.InventoryPath)
	if err != nil {
		return lm.fail(err)
	}

	loaded := lm.deviceManager.LoadInventory(defs)
	for _, device := range lm.deviceManager.ListDevices() {
		lm.healthServer.RegisterDevice(device)
	}
	lm.logger.Info("Device inventory loaded",
		zap.String("path", lm.config.Devices.InventoryPath),
		zap.Int("entries", len(defs)),
		zap.Int("devices", loaded))

	ctx, cancel := context.WithCancel(context.Background())
	lm.cancel = cancel

	lm.bg.Add(1)
	go func() {
		defer lm.bg.Done()
		lm.wsHub.Run(ctx)
	}()

	if err := lm.healthServer.Start(); err != nil {
		return lm.fail(fmt.Errorf("failed to start gRPC health server: %w", err))
	}

	if err := lm.restServer.Start(); err != nil {
		return lm.fail(fmt.Errorf("failed to start REST API: %w", err))
	}

	if lm.storage != nil && lm.config.Database.Retention > 0 {
		lm.bg.Add(1)
		go func() {
			defer lm.bg.Done()
			lm.pruneHistory(ctx)
		}()
	}

	lm.deviceManager.StartAllPollers()

	if err := lm.setState(StateRunning); err != nil {
		return err
	}

	lm.logger.Info("System started successfully",
		zap.String("grpc_address", lm.healthServer.Addr()),
		zap.String("http_address", lm.restServer.Addr()),
		zap.Int("devices", loaded),
		zap.Bool("history_enabled", lm.storage != nil))

	return nil
}

// pruneHistory deletes snapshots older than the retention window until ctx ends.
func (lm *LifecycleManager) pruneHistory(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := lm.storage.PruneStatistics(ctx, time.Now().Add(-lm.config.Database.Retention))
			if err != nil {
				lm.logger.Warn("Failed to prune statistics history", zap.Error(err))
				continue
			}
			if removed > 0 {
				lm.logger.Info("Pruned statistics history", zap.Int64("rows", removed))
			}
		}
	}
}

// Shutdown gracefully shuts down the system. Later calls return the result
// of the first.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		if err := lm.setState(StateStopping); err != nil {
			lm.logger.Warn("Unexpected state at shutdown", zap.Error(err))
		}

		shutdownErr = lm.gracefulShutdown(ctx)

		if err := lm.setState(StateStopped); err != nil {
			lm.logger.Warn("Unexpected state after shutdown", zap.Error(err))
		}

		close(lm.shutdownChan)
	})

	return shutdownErr
}

// Done is closed once Shutdown has finished.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	// 1. Stop all pollers
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.deviceManager.StopAll(ctx); err != nil {
			collect(fmt.Errorf("device manager stop failed: %w", err))
		}
	}()

	// 2. REST API Server graceful shutdown
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.restServer.Shutdown(ctx); err != nil {
			collect(fmt.Errorf("rest api shutdown failed: %w", err))
		}
	}()

	// 3. gRPC health server graceful stop
	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.logger.Info("Stopping gRPC health server")
		lm.healthServer.Stop()
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		collect(fmt.Errorf("shutdown timeout exceeded: %w", ctx.Err()))
	}

	// The hub goes last so the STOPPING status still reaches clients.
	if lm.cancel != nil {
		lm.cancel()
	}
	lm.bg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	lm.logger.Info("Graceful shutdown completed")
	return nil
}

func (lm *LifecycleManager) fail(err error) error {
	lm.stateMu.Lock()
	lm.lastErr = err
	lm.stateMu.Unlock()

	if stateErr := lm.setState(StateError); stateErr != nil {
		lm.logger.Warn("Failed to enter error state", zap.Error(stateErr))
	}
	lm.logger.Error("System failure", zap.Error(err))
	return err
}

func (lm *LifecycleManager) setState(state SystemState) error {
	lm.stateMu.Lock()
	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.stateMu.Unlock()
		return err
	}
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.broadcastStatus()
	return nil
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	status := interfaces.SystemStatus{State: lm.currentState.String()}
	if lm.lastErr != nil {
		status.Error = lm.lastErr.Error()
	}
	lm.stateMu.RUnlock()

	for _, d := range lm.deviceManager.ListDevices() {
		status.DeviceCount++
		if d.Polling {
			status.PollingDevices++
		}
		if d.LastPollAt != nil && d.LastError == "" {
			status.HealthyDevices++
		}
	}
	status.ClientCount = lm.wsHub.GetClientCount()

	return status
}

func (lm *LifecycleManager) broadcastStatus() {
	lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, lm.GetCurrentStatus()))
}

// Devices returns the device service (Interface implementation)
func (lm *LifecycleManager) Devices() interfaces.DeviceService {
	return lm.deviceManager
}

// RESTAddr is the bound REST address once Start has succeeded.
func (lm *LifecycleManager) RESTAddr() string {
	return lm.restServer.Addr()
}

// GRPCAddr is the bound gRPC health address once Start has succeeded.
func (lm *LifecycleManager) GRPCAddr() string {
	return lm.healthServer.Addr()
}
