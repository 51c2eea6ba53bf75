// SQLite Alert 저장소 (로컬 단독 실행용 기본 백엔드)
//
// 환경변수:
//   - SQLITE_PATH (default: railguard.db)
//
// Postgres 백엔드와 같은 메서드 집합을 제공하므로 service 레이어는 어느 쪽이든 그대로 사용한다.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
	"github.com/railguard/backend/internal/model"
)

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite - DB 파일을 열고 alerts 스키마를 보장
func NewSQLite(ctx context.Context, dataSourceName string) (*SQLite, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	// busy timeout (ms): 동시 INSERT 시 SQLITE_BUSY 대신 대기
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	conn, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	store := &SQLite{
		db:  conn,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := store.EnsureAlertSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureAlertSchema - alerts 테이블 생성
func (s *SQLite) EnsureAlertSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			"timestamp" DATETIME NOT NULL,
			trigger_reason TEXT NOT NULL DEFAULT 'UNKNOWN',
			yolo_flag TEXT NOT NULL,
			yolo_detections TEXT NOT NULL DEFAULT '[]',
			yolo_confidence REAL NOT NULL DEFAULT 0,
			gemini_status TEXT NOT NULL,
			gemini_reason TEXT NOT NULL DEFAULT '',
			gemini_confidence REAL NOT NULL DEFAULT 0,
			final_status TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)
		`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure alerts schema: %w", err)
		}
	}
	return nil
}

// CreateAlert - INSERT 후 부여된 id로 다시 읽어 커밋된 레코드 반환
func (s *SQLite) CreateAlert(ctx context.Context, draft model.AlertDraft) (*model.Alert, error) {
	query := `
		INSERT INTO alerts (
			"timestamp", trigger_reason, yolo_flag, yolo_detections, yolo_confidence,
			gemini_status, gemini_reason, gemini_confidence, final_status, image_url, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
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
		s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read alert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reload alert %d: %w", id, err)
	}
	return alert, nil
}

// ListRecentAlerts - 최신순 Alert 목록 조회 (created_at DESC)
func (s *SQLite) ListRecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	list := []model.Alert{}
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
	return list, nil
}

// LatestAlert - 가장 최근 Alert 1건 조회 (비어 있으면 nil, nil)
func (s *SQLite) LatestAlert(ctx context.Context) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest alert: %w", err)
	}
	return alert, nil
}
