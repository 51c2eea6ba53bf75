package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mdobak/go-xerrors"
	"github.com/railguard/backend/internal/model"
	"github.com/railguard/backend/internal/service"
)

// Alert 조회 핸들러 구조체 정의
type AlertHandler struct {
	alertService *service.AlertService
	logger       *slog.Logger
}

// Alert 핸들러 객체 생성
func NewAlertHandler(alertService *service.AlertService, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{alertService: alertService, logger: logger}
}

// GetStatus godoc
// @Summary Overall track status
// @Description DANGER if the newest alert is DANGER and younger than five minutes.
// @Tags alerts
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /status [get]
func (h *AlertHandler) GetStatus(c *gin.Context) {
	res, err := h.alertService.Overall(c.Request.Context())
	if err != nil {
		h.logger.Error("status query failed", "request_id", RequestID(c), slog.Any("error", xerrors.New(err)))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Status check failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetAlerts godoc
// @Summary List recent alerts
// @Tags alerts
// @Produce json
// @Param limit query int false "Maximum number of alerts (default 50)"
// @Success 200 {object} model.AlertListResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /alerts [get]
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	alerts, err := h.alertService.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("alert list failed", "request_id", RequestID(c), slog.Any("error", xerrors.New(err)))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Alerts fetch failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.AlertListResponse{Alerts: alerts, Count: len(alerts)})
}
