// 실시간 Alert 스트림 (Server-Sent Events)
//
// 연결마다 Broadcaster 구독을 하나 만들고, 새 Alert가 저장될 때마다
// "event: alert" + Alert JSON을 전송한다. 이벤트가 없으면 keepalive 주석을 보낸다.

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railguard/backend/internal/service"
)

const alertEventName = "alert"

type EventsHandler struct {
	broadcaster *service.Broadcaster
	keepalive   time.Duration
	logger      *slog.Logger
}

func NewEventsHandler(broadcaster *service.Broadcaster, keepalive time.Duration, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &EventsHandler{broadcaster: broadcaster, keepalive: keepalive, logger: logger.With("component", "sse")}
}

// Stream godoc
// @Summary Live alert stream
// @Description Server-Sent Events; each stored alert is sent as event "alert" with the alert JSON as data.
// @Tags alerts
// @Produce text/event-stream
// @Success 200 {object} model.Alert
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	sub := h.broadcaster.Subscribe()
	defer sub.Close()

	ctx := c.Request.Context()
	logger := h.logger.With("request_id", RequestID(c), "remote", c.ClientIP())
	logger.Info("sse client connected")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		waitCtx, cancel := context.WithTimeout(ctx, h.keepalive)
		event, err := sub.Next(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				logger.Info("sse client disconnected")
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
					return
				}
				c.Writer.Flush()
				continue
			}
			logger.Warn("sse subscription failed", "error", err)
			return
		}

		payload, err := json.Marshal(event)
		if err != nil {
			logger.Warn("failed to encode alert event", "alert_id", event.ID, "error", err)
			continue
		}
		c.SSEvent(alertEventName, string(payload))
		c.Writer.Flush()
	}
}
