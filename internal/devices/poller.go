package devices

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Poller struct {
	manager  *Manager
	deviceID uuid.UUID
	name     string
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewPoller(manager *Manager, deviceID uuid.UUID, name string, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		manager:  manager,
		deviceID: deviceID,
		name:     name,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins cyclic polling. The first poll runs immediately.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.running = true
	p.wg.Add(1)

	go p.pollLoop()

	p.logger.Info("Poller started",
		zap.String("device", p.name),
		zap.Duration("interval", p.interval))

	return nil
}

// Stop ends polling and waits for an in-flight poll to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	p.logger.Info("Poller stopped", zap.String("device", p.name))
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollDevice()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.pollDevice()
		}
	}
}

func (p *Poller) pollDevice() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	// stop aborts a poll that is still waiting on the device
	go func() {
		select {
		case <-p.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	if _, err := p.manager.Poll(ctx, p.deviceID); err != nil {
		p.logger.Warn("Poll failed",
			zap.String("device", p.name),
			zap.Error(err))
		return
	}

	p.logger.Debug("Poll completed",
		zap.String("device", p.name),
		zap.Duration("took", time.Since(start)))
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
