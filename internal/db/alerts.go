package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/railguard/backend/internal/model"
)

// alertColumns - SELECT 컬럼 순서 (scanAlert와 동일하게 유지)
const alertColumns = `
	id, "timestamp", trigger_reason, yolo_flag, yolo_detections, yolo_confidence,
	gemini_status, gemini_reason, gemini_confidence, final_status, image_url, created_at`

// EnsureAlertSchema - alerts 테이블 생성
// append-only 테이블: UPDATE/DELETE 경로 없음
func (db *Postgres) EnsureAlertSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			"timestamp" TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			trigger_reason TEXT NOT NULL DEFAULT 'UNKNOWN',
			yolo_flag TEXT NOT NULL,
			yolo_detections TEXT NOT NULL DEFAULT '[]',
			yolo_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			gemini_status TEXT NOT NULL,
			gemini_reason TEXT NOT NULL DEFAULT '',
			gemini_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			final_status TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS alerts_final_status_idx ON alerts(final_status)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure alerts schema: %w", err)
		}
	}
	return nil
}

// CreateAlert - 분석 결과를 alerts 테이블에 저장하고 부여된 id, created_at을 포함해 반환
func (db *Postgres) CreateAlert(ctx context.Context, draft model.AlertDraft) (*model.Alert, error) {
	query := `
		INSERT INTO alerts (
			"timestamp", trigger_reason, yolo_flag, yolo_detections, yolo_confidence,
			gemini_status, gemini_reason, gemini_confidence, final_status, image_url, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING ` + alertColumns

	row := db.Pool.QueryRow(ctx, query,
		draft.Timestamp.UTC(),
		draft.TriggerReason,
		string(draft.YoloFlag),
		draft.YoloDetections,
		draft.YoloConfidence,
		string(draft.GeminiStatus),
		draft.GeminiReason,
		draft.GeminiConfidence,
		string(draft.FinalStatus),
		draft.ImageURL,
	)

	alert, err := scanAlert(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return alert, nil
}

// ListRecentAlerts - 최신순 Alert 목록 조회 (created_at DESC)
func (db *Postgres) ListRecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var list []model.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	if list == nil {
		list = []model.Alert{}
	}
	return list, nil
}

// LatestAlert - 가장 최근 Alert 1건 조회 (비어 있으면 nil, nil)
func (db *Postgres) LatestAlert(ctx context.Context) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	alert, err := scanAlert(db.Pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest alert: %w", err)
	}
	return alert, nil
}

// rowScanner - pgx.Row, pgx.Rows, *sql.Row, *sql.Rows 공통
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*model.Alert, error) {
	var a model.Alert
	var yoloFlag, geminiStatus, finalStatus string
	if err := row.Scan(
		&a.ID,
		&a.Timestamp,
		&a.TriggerReason,
		&yoloFlag,
		&a.YoloDetections,
		&a.YoloConfidence,
		&geminiStatus,
		&a.GeminiReason,
		&a.GeminiConfidence,
		&finalStatus,
		&a.ImageURL,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.YoloFlag = model.Status(yoloFlag)
	a.GeminiStatus = model.Status(geminiStatus)
	a.FinalStatus = model.Status(finalStatus)
	a.Timestamp = a.Timestamp.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
