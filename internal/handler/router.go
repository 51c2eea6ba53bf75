package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Analyze *AnalyzeHandler
	Alerts  *AlertHandler
	Events  *EventsHandler
	Health  *HealthHandler
}

type RouterConfig struct {
	AllowedOrigins []string
	StorageDir     string
	StoragePrefix  string
}

// NewRouter - 모든 엔드포인트와 미들웨어를 등록한 gin 엔진
func NewRouter(h Handlers, cfg RouterConfig, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), RequestLogger(logger), CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/", h.Health.Root)
	router.GET("/ping", Ping)
	router.GET("/openapi.json", OpenAPIDoc)

	router.POST("/analyze", h.Analyze.Analyze)
	router.GET("/status", h.Alerts.GetStatus)
	router.GET("/alerts", h.Alerts.GetAlerts)
	router.GET("/events", h.Events.Stream)

	if cfg.StorageDir != "" && cfg.StoragePrefix != "" {
		router.Static(cfg.StoragePrefix, cfg.StorageDir)
	}

	return router
}
