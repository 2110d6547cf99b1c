package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/api/websocket"
	"github.com/KevinKickass/airmedia-bridge/internal/auth"
	"github.com/KevinKickass/airmedia-bridge/internal/config"
	"github.com/KevinKickass/airmedia-bridge/internal/interfaces"
	"github.com/KevinKickass/airmedia-bridge/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryStore serves the stored statistics and control audit log.
type HistoryStore interface {
	StatisticsHistory(ctx context.Context, deviceID uuid.UUID, limit int) ([]storage.StatisticsSnapshot, error)
	ControlEvents(ctx context.Context, deviceID uuid.UUID, limit int) ([]storage.ControlEvent, error)
}

type Server struct {
	router      *gin.Engine
	lm          interfaces.LifecycleManager
	logger      *zap.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
	history     HistoryStore

	mu       sync.Mutex
	listener net.Listener
}

// NewServer wires the routes. history may be nil when the database is
// disabled; the history endpoints then answer 503.
func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, authService *auth.AuthService, history HistoryStore) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:      router,
		lm:          lm,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
		history:     history,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // covers a refresh poll of a slow device
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("Starting REST API server", zap.String("address", lis.Addr().String()))
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ====================
		v1.POST("/auth/login", s.login)
		v1.GET("/auth/me", s.authService.AuthMiddleware(), s.getCurrentUser)

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		{
			system.GET("/status", auth.RequirePermission(auth.PermOperator), s.getSystemStatus)
			system.POST("/shutdown", auth.RequirePermission(auth.PermAdmin), s.shutdown)
		}

		// ==================== DEVICES ====================
		devices := v1.Group("/devices")
		devices.Use(s.authService.AuthMiddleware())
		{
			// Read operations: Operator+
			devices.GET("", auth.RequirePermission(auth.PermOperator), s.listDevices)
			devices.GET("/:id", auth.RequirePermission(auth.PermOperator), s.getDevice)
			devices.GET("/:id/statistics", auth.RequirePermission(auth.PermOperator), s.getStatistics)
			devices.GET("/:id/statistics/history", auth.RequirePermission(auth.PermOperator), s.getStatisticsHistory)
			devices.GET("/:id/events", auth.RequirePermission(auth.PermOperator), s.getControlEvents)
			devices.POST("/:id/ping", auth.RequirePermission(auth.PermOperator), s.pingDevice)

			// Controls: Technician+
			devices.POST("/:id/control", auth.RequirePermission(auth.PermTechnician), s.controlDevice)
			devices.POST("/:id/control/batch", auth.RequirePermission(auth.PermTechnician), s.controlDeviceBatch)
		}

		// ==================== WEBSOCKET (auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), auth.RequirePermission(auth.PermOperator), s.wsStatus)
		}
	}
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
