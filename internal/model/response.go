package model

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Service    string    `json:"service"`
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Database   string    `json:"database"`
	Storage    string    `json:"storage"`
	Realtime   string    `json:"realtime"`
	AIPipeline string    `json:"ai_pipeline"`
	Timestamp  time.Time `json:"timestamp"`
}

// PipelineTrace - /analyze 응답의 단계별 결과
// Stage 2가 실행되지 않았으면 StageTwo는 null
type PipelineTrace struct {
	StageOne StageOneResult  `json:"stage1_yolo"`
	StageTwo *StageTwoResult `json:"stage2_gemini"`
}

type AnalyzeResponse struct {
	Success     bool          `json:"success"`
	AlertID     int64         `json:"alert_id"`
	Pipeline    PipelineTrace `json:"pipeline"`
	FinalStatus Status        `json:"final_status"`
	ImageURL    string        `json:"image_url"`
	Timestamp   time.Time     `json:"timestamp"`
}

// LatestAlertSummary - /status의 latest_alert 항목
type LatestAlertSummary struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TriggerReason string    `json:"trigger_reason"`
	FinalStatus   Status    `json:"final_status"`
	GeminiReason  string    `json:"gemini_reason"`
	ImageURL      string    `json:"image_url"`
}

// RecentAlertSummary - /status의 recent_alerts 항목
type RecentAlertSummary struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TriggerReason string    `json:"trigger_reason"`
	FinalStatus   Status    `json:"final_status"`
	ImageURL      string    `json:"image_url"`
}

type StatusResponse struct {
	OverallStatus Status               `json:"overall_status"`
	LatestAlert   *LatestAlertSummary  `json:"latest_alert"`
	RecentAlerts  []RecentAlertSummary `json:"recent_alerts"`
	Timestamp     time.Time            `json:"timestamp"`
}

type AlertListResponse struct {
	Alerts []Alert `json:"alerts"`
	Count  int     `json:"count"`
}
