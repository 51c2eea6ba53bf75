// 센서 프레임 분석 요청을 처리하는 핸들러
//
// 요청 흐름:
//  1. ESP32-CAM이 raw JPEG 바디로, 테스트 스크립트는 multipart "file" 필드로 POST /analyze
//  2. X-Trigger-Reason 헤더로 센서 트리거 전달 (없으면 UNKNOWN)
//  3. PipelineService.Analyze로 2단계 판정, 저장, 이벤트 발행
//  4. 단계별 결과와 최종 판정을 응답

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mdobak/go-xerrors"
	"github.com/railguard/backend/internal/model"
	"github.com/railguard/backend/internal/service"
)

const (
	TriggerReasonHeader = "X-Trigger-Reason"
	maxImageBytes       = 20 << 20
)

type AnalyzeHandler struct {
	pipeline *service.PipelineService
	logger   *slog.Logger
}

func NewAnalyzeHandler(pipeline *service.PipelineService, logger *slog.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeHandler{pipeline: pipeline, logger: logger}
}

// Analyze godoc
// @Summary Analyze a sensor frame
// @Description Runs the two-stage detection pipeline on a JPEG frame (raw body or multipart "file").
// @Tags pipeline
// @Accept image/jpeg
// @Accept multipart/form-data
// @Produce json
// @Param X-Trigger-Reason header string false "Sensor trigger (OBSTACLE, VIBRATION, HOLE, ...)"
// @Param file formData file false "Frame image"
// @Success 200 {object} model.AnalyzeResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 413 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /analyze [post]
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)

	image, err := readImage(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: fmt.Sprintf("Image exceeds %d bytes", maxImageBytes)})
			return
		}
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid image upload: " + err.Error()})
		return
	}

	// 센서가 응답 전에 연결을 끊어도 판정은 끝까지 저장
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.pipeline.Analyze(ctx, image, c.GetHeader(TriggerReasonHeader))
	if err != nil {
		if errors.Is(err, service.ErrEmptyImage) {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Empty image file"})
			return
		}
		h.logger.Error("analysis failed", "request_id", RequestID(c), slog.Any("error", xerrors.New(err)))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Analysis failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, toAnalyzeResponse(res))
}

func readImage(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, err := c.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

func toAnalyzeResponse(res *service.AnalysisResult) model.AnalyzeResponse {
	trace := model.PipelineTrace{StageOne: res.StageOne.Result}
	if res.StageTwo != nil {
		stageTwo := res.StageTwo.Result
		trace.StageTwo = &stageTwo
	}
	return model.AnalyzeResponse{
		Success:     true,
		AlertID:     res.AlertID(),
		Pipeline:    trace,
		FinalStatus: res.FinalStatus(),
		ImageURL:    res.ImageURL(),
		Timestamp:   res.Alert.Timestamp,
	}
}
