package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railguard/backend/internal/model"
)

const (
	ServiceName    = "RailGuard V2"
	ServiceVersion = "2.1.0"
)

// HealthInfo - 루트 엔드포인트에 노출하는 구성 요약
type HealthInfo struct {
	Database   string
	Storage    string
	Realtime   string
	AIPipeline string
}

type HealthHandler struct {
	info HealthInfo
	now  func() time.Time
}

func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info, now: func() time.Time { return time.Now().UTC() }}
}

// Ping godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} model.PingResponse
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// Root godoc
// @Summary Service information
// @Tags health
// @Produce json
// @Success 200 {object} model.RootResponse
// @Router / [get]
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Service:    ServiceName,
		Status:     "operational",
		Version:    ServiceVersion,
		Database:   h.info.Database,
		Storage:    h.info.Storage,
		Realtime:   h.info.Realtime,
		AIPipeline: h.info.AIPipeline,
		Timestamp:  h.now(),
	})
}
