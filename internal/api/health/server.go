package health

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const servicePrefix = "airmedia.device/"

// ServiceName is the gRPC health service name reported for a device.
func ServiceName(deviceName string) string {
	return servicePrefix + deviceName
}

// Server exposes the standard gRPC health service. The overall service ("")
// follows the process; one entry per device follows its last poll.
type Server struct {
	grpcServer *grpc.Server
	health     *grpchealth.Server
	logger     *zap.Logger
	addr       string

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(addr string, logger *zap.Logger) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     grpchealth.NewServer(),
		logger:     logger,
		addr:       addr,
	}

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	return s
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	go func() {
		s.logger.Info("gRPC health server listening", zap.String("address", lis.Addr().String()))
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// RegisterDevice announces a device before its first poll.
func (s *Server) RegisterDevice(device types.DeviceInfo) {
	s.health.SetServingStatus(ServiceName(device.Name), healthpb.HealthCheckResponse_UNKNOWN)
}

func (s *Server) StatisticsCollected(ctx context.Context, device types.DeviceInfo, stats *types.ExtendedStatistics) {
	s.health.SetServingStatus(ServiceName(device.Name), healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) PollFailed(ctx context.Context, device types.DeviceInfo, err error) {
	s.health.SetServingStatus(ServiceName(device.Name), healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) ControlApplied(ctx context.Context, device types.DeviceInfo, cps []types.ControllableProperty, err error) {
}
