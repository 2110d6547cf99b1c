package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ControlBatchRequest struct {
	Properties []types.ControllableProperty `json:"properties" binding:"required,min=1,dive"`
}

// GET /api/v1/devices
func (s *Server) listDevices(c *gin.Context) {
	devices := s.lm.Devices().ListDevices()

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// GET /api/v1/devices/:id
func (s *Server) getDevice(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	device, exists := s.lm.Devices().GetDevice(deviceID)
	if !exists {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}

	c.JSON(http.StatusOK, device)
}

// GET /api/v1/devices/:id/statistics[?refresh=true]
func (s *Server) getStatistics(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))

	stats, err := s.lm.Devices().Statistics(c.Request.Context(), deviceID, refresh)
	if err != nil {
		writeDeviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GET /api/v1/devices/:id/statistics/history
func (s *Server) getStatisticsHistory(c *gin.Context) {
	deviceID, limit, ok := s.historyParams(c)
	if !ok {
		return
	}

	snapshots, err := s.history.StatisticsHistory(c.Request.Context(), deviceID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HISTORY_500", "Failed to read statistics history", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// GET /api/v1/devices/:id/events
func (s *Server) getControlEvents(c *gin.Context) {
	deviceID, limit, ok := s.historyParams(c)
	if !ok {
		return
	}

	events, err := s.history.ControlEvents(c.Request.Context(), deviceID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HISTORY_500", "Failed to read control events", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// POST /api/v1/devices/:id/ping
func (s *Server) pingDevice(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	rtt, err := s.lm.Devices().Ping(c.Request.Context(), deviceID)
	if err != nil {
		writeDeviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reachable":  true,
		"latency_ms": float64(rtt) / float64(time.Millisecond),
	})
}

// POST /api/v1/devices/:id/control
func (s *Server) controlDevice(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	var req types.ControllableProperty
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("CONTROL_400", "Invalid request body", err.Error()))
		return
	}

	if err := s.lm.Devices().Control(c.Request.Context(), deviceID, req); err != nil {
		writeDeviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Control applied",
		"property": req.Property,
	})
}

// POST /api/v1/devices/:id/control/batch
func (s *Server) controlDeviceBatch(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	var req ControlBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("CONTROL_400", "Invalid request body", err.Error()))
		return
	}

	if err := s.lm.Devices().ControlBatch(c.Request.Context(), deviceID, req.Properties); err != nil {
		writeDeviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Controls applied",
		"count":   len(req.Properties),
	})
}

func (s *Server) historyParams(c *gin.Context) (uuid.UUID, int, bool) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("HISTORY_503", "History storage is disabled", nil))
		return uuid.Nil, 0, false
	}

	deviceID, ok := parseDeviceID(c)
	if !ok {
		return uuid.Nil, 0, false
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("HISTORY_400", "limit must be between 1 and 1000", raw))
			return uuid.Nil, 0, false
		}
		limit = n
	}

	return deviceID, limit, true
}

func parseDeviceID(c *gin.Context) (uuid.UUID, bool) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", c.Param("id")))
		return uuid.Nil, false
	}
	return deviceID, true
}

// writeDeviceError maps adapter and manager errors to API responses.
func writeDeviceError(c *gin.Context, err error) {
	var notAuthorized *types.NotAuthorizedError
	var parseErr *types.ParseError
	var transportErr *types.TransportError

	switch {
	case errors.Is(err, types.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
	case errors.Is(err, types.ErrNoStatistics):
		c.JSON(http.StatusNotFound, types.NewErrorResponse("STATS_404", "No statistics collected yet", nil))
	case errors.As(err, &notAuthorized):
		c.JSON(http.StatusBadGateway, types.NewErrorResponse("DEVICE_AUTH", "Device rejected the configured credentials", err.Error()))
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadGateway, types.NewErrorResponse("DEVICE_PARSE", "Device returned an unexpected document", err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, types.NewErrorResponse("DEVICE_TIMEOUT", "Device did not answer in time", err.Error()))
	case errors.As(err, &transportErr):
		c.JSON(http.StatusBadGateway, types.NewErrorResponse("DEVICE_TRANSPORT", "Device request failed", gin.H{
			"status_code": transportErr.StatusCode,
			"error":       err.Error(),
		}))
	default:
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Device operation failed", err.Error()))
	}
}
