// 파이프라인 단계별 결과와 Alert 레코드 구조체를 정의
// handler, service, client, db 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Status - 안전 판정 (SAFE | DANGER 두 값만 존재)
type Status string

const (
	StatusSafe   Status = "SAFE"
	StatusDanger Status = "DANGER"
)

// ParseStatus - 대소문자/공백을 정규화한 뒤 SAFE, DANGER 외의 값은 거부
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusSafe:
		return StatusSafe, true
	case StatusDanger:
		return StatusDanger, true
	default:
		return "", false
	}
}

// DefaultTriggerReason - X-Trigger-Reason 헤더가 없을 때 사용
const DefaultTriggerReason = "UNKNOWN"

// TriggerHole - Stage 1 결과와 관계없이 Stage 2를 강제하는 센서 트리거
const TriggerHole = "HOLE"

// Detection - Stage 1 개별 탐지 결과
// BBox: 원본 이미지 좌표계의 [x1, y1, x2, y2]
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// StageOneResult - YOLO 단계 결과
// Flag는 Detections가 비어 있지 않을 때만 DANGER
type StageOneResult struct {
	Flag       Status      `json:"flag"`
	Detections []Detection `json:"detections"`
	Confidence float64     `json:"confidence"`
}

// StageTwoResult - Gemini 검증 단계 결과
type StageTwoResult struct {
	Status     Status  `json:"status"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// AlertDraft - 저장 전 Alert (id, created_at은 저장소가 부여)
type AlertDraft struct {
	Timestamp        time.Time
	TriggerReason    string
	YoloFlag         Status
	YoloDetections   string
	YoloConfidence   float64
	GeminiStatus     Status
	GeminiReason     string
	GeminiConfidence float64
	FinalStatus      Status
	ImageURL         string
}

// Alert - 저장된 분석 이벤트 (생성 후 변경되지 않음)
// yolo_detections는 대시보드 호환을 위해 JSON 문자열로 직렬화된 Detection 목록
type Alert struct {
	ID               int64     `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	TriggerReason    string    `json:"trigger_reason"`
	YoloFlag         Status    `json:"yolo_flag"`
	YoloDetections   string    `json:"yolo_detections"`
	YoloConfidence   float64   `json:"yolo_confidence"`
	GeminiStatus     Status    `json:"gemini_status"`
	GeminiReason     string    `json:"gemini_reason"`
	GeminiConfidence float64   `json:"gemini_confidence"`
	FinalStatus      Status    `json:"final_status"`
	ImageURL         string    `json:"image_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// LiveAlertEvent - 새로 저장된 Alert의 스냅샷 (SSE 구독자에게 한 번씩 전달)
type LiveAlertEvent struct {
	Alert
}

// NewLiveAlertEvent - 커밋된 Alert로부터 이벤트 생성
func NewLiveAlertEvent(alert Alert) LiveAlertEvent {
	return LiveAlertEvent{Alert: alert}
}

// EncodeDetections - Detection 목록을 yolo_detections 컬럼 형식으로 직렬화
func EncodeDetections(detections []Detection) (string, error) {
	if detections == nil {
		detections = []Detection{}
	}
	raw, err := json.Marshal(detections)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeDetections - yolo_detections 컬럼을 Detection 목록으로 복원
func DecodeDetections(raw string) ([]Detection, error) {
	if raw == "" {
		return []Detection{}, nil
	}
	var detections []Detection
	if err := json.Unmarshal([]byte(raw), &detections); err != nil {
		return nil, err
	}
	if detections == nil {
		detections = []Detection{}
	}
	return detections, nil
}
