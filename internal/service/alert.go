// Alert 조회 비즈니스 로직 정의
// 저장된 Alert 목록 조회와 대시보드용 종합 상태(overall status) 계산
//
// 종합 상태 규칙:
//  - 가장 최신 Alert 1건과 최근 Alert 10건(최신순)을 조회
//  - 가장 최신 Alert가 DANGER이고 FreshnessWindow(5분) 이내이면 DANGER
//  - 그 외 (Alert 없음, 최신이 SAFE, 오래된 DANGER)는 SAFE

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/railguard/backend/internal/model"
)

const (
	// FreshnessWindow - DANGER Alert가 종합 상태에 반영되는 기간 (경계값 300초는 SAFE)
	FreshnessWindow = 300 * time.Second

	StatusRecentLimit = 10
	DefaultListLimit  = 50
	MaxListLimit      = 500
)

// AlertService 구조체 정의
type AlertService struct {
	repo   AlertRepo
	logger *slog.Logger
	now    func() time.Time
}

// AlertService 객체 생성
func NewAlertService(repo AlertRepo, logger *slog.Logger) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertService{
		repo:   repo,
		logger: logger.With("component", "alerts"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListAlerts - 최신순 Alert 목록 (limit <= 0 이면 50, 상한 500)
func (s *AlertService) ListAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	alerts, err := s.repo.ListRecentAlerts(ctx, NormalizeListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	return alerts, nil
}

// Overall - 대시보드용 종합 상태
func (s *AlertService) Overall(ctx context.Context) (*model.StatusResponse, error) {
	latest, err := s.repo.LatestAlert(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest alert: %w", err)
	}
	recent, err := s.repo.ListRecentAlerts(ctx, StatusRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent alerts: %w", err)
	}

	now := s.now()
	resp := &model.StatusResponse{
		OverallStatus: model.StatusSafe,
		RecentAlerts:  make([]model.RecentAlertSummary, 0, len(recent)),
		Timestamp:     now,
	}

	if latest != nil {
		resp.OverallStatus = OverallStatus(latest, now)
		resp.LatestAlert = &model.LatestAlertSummary{
			ID:            latest.ID,
			Timestamp:     latest.Timestamp,
			TriggerReason: latest.TriggerReason,
			FinalStatus:   latest.FinalStatus,
			GeminiReason:  latest.GeminiReason,
			ImageURL:      latest.ImageURL,
		}
	}

	for _, a := range recent {
		resp.RecentAlerts = append(resp.RecentAlerts, model.RecentAlertSummary{
			ID:            a.ID,
			Timestamp:     a.Timestamp,
			TriggerReason: a.TriggerReason,
			FinalStatus:   a.FinalStatus,
			ImageURL:      a.ImageURL,
		})
	}

	s.logger.Debug("overall status computed", "status", resp.OverallStatus, "recent", len(recent))
	return resp, nil
}

// OverallStatus - 최신 Alert 하나로 종합 상태 판정
// 미래 timestamp(시계 오차)는 경과 시간 0으로 취급한다.
func OverallStatus(latest *model.Alert, now time.Time) model.Status {
	if latest == nil || latest.FinalStatus != model.StatusDanger {
		return model.StatusSafe
	}
	age := now.Sub(latest.Timestamp)
	if age < 0 {
		age = 0
	}
	if age < FreshnessWindow {
		return model.StatusDanger
	}
	return model.StatusSafe
}

func NormalizeListLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
