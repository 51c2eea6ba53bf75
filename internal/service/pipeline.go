// 2단계 분석 파이프라인 비즈니스 로직 정의
// handler에서 받은 프레임을 Stage 1 / Stage 2로 판정하고 저장, 전파까지 수행
//
// 처리 흐름:
//  1. 빈 이미지 거부 (ErrEmptyImage, 아무것도 저장하지 않음)
//  2. Stage 1 (YOLO): 항상 실행, 위험 클래스 allow-list로 필터링
//     - 분류기 실패 시 {DANGER, [], 0.0}으로 대체 (fail-safe)
//  3. Stage 2 (Gemini): Stage 1이 DANGER이거나 trigger가 HOLE일 때만 실행
//     - 검증 실패/응답 이상 시 {DANGER, 0.5}로 대체 (fail-safe)
//  4. 최종 판정: Stage 2 실행 시 그 결과, 아니면 SAFE / 0.9
//  5. 이미지 저장 (실패해도 계속 진행, image_url = "")
//  6. Alert 저장 (실패 시 ErrPersistence로 요청 실패)
//  7. 저장된 Alert로 LiveAlertEvent 발행

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/model"
)

var (
	ErrEmptyImage  = errors.New("empty image")
	ErrPersistence = errors.New("alert persistence failed")
)

// DangerClasses - 철도 안전에 의미 있는 COCO 클래스 (id -> 표시 이름)
var DangerClasses = map[int]string{
	0: "Person", 1: "Bicycle", 2: "Car", 3: "Motorcycle",
	5: "Bus", 7: "Truck", 14: "Bird", 15: "Cat",
	16: "Dog", 17: "Horse", 18: "Sheep", 19: "Cow",
}

// Stage 2를 건너뛴 경우 gemini_* 컬럼에 기록하는 고정 값
const (
	SkippedReason     = "No objects detected by YOLO, sensor may have triggered on false positive"
	SkippedConfidence = 0.9
)

// Stage 2 실패 시 대체 신뢰도 (응답에 confidence가 없을 때의 기본값과 동일)
const DegradedVerifierConfidence = 0.5

const defaultImageMIME = "image/jpeg"

type FastClassifier interface {
	Detect(ctx context.Context, image []byte) ([]model.Detection, error)
}

type Verifier interface {
	Verify(ctx context.Context, req model.VerifyRequest) (model.StageTwoResult, error)
}

type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

type AlertRepo interface {
	CreateAlert(ctx context.Context, draft model.AlertDraft) (*model.Alert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]model.Alert, error)
	LatestAlert(ctx context.Context) (*model.Alert, error)
}

type EventPublisher interface {
	Publish(event model.LiveAlertEvent)
}

// StageOneOutcome - Stage 1 결과
// Cause != nil 이면 분류기 실패로 보수적 기본값이 들어간 상태 (degraded)
type StageOneOutcome struct {
	Result model.StageOneResult
	Cause  error
}

func (o StageOneOutcome) Degraded() bool { return o.Cause != nil }

// StageTwoOutcome - Stage 2가 실행된 경우의 결과
// 실행되지 않았으면 AnalysisResult.StageTwo는 nil
type StageTwoOutcome struct {
	Result model.StageTwoResult
	Cause  error
}

func (o StageTwoOutcome) Degraded() bool { return o.Cause != nil }

// AnalysisResult - Analyze 결과 (단계별 trace + 최종 판정 + 저장 결과)
type AnalysisResult struct {
	Alert    model.Alert
	StageOne StageOneOutcome
	StageTwo *StageTwoOutcome
}

func (r *AnalysisResult) AlertID() int64            { return r.Alert.ID }
func (r *AnalysisResult) FinalStatus() model.Status { return r.Alert.FinalStatus }
func (r *AnalysisResult) ImageURL() string          { return r.Alert.ImageURL }

// PipelineService 구조체 정의
type PipelineService struct {
	classifier      FastClassifier
	verifier        Verifier
	blobs           BlobStore
	repo            AlertRepo
	events          EventPublisher
	logger          *slog.Logger
	verifierTimeout time.Duration
	now             func() time.Time
}

// PipelineService 객체 생성
func NewPipelineService(
	classifier FastClassifier,
	verifier Verifier,
	blobs BlobStore,
	repo AlertRepo,
	events EventPublisher,
	verifierCfg config.VerifierConfig,
	logger *slog.Logger,
) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		classifier:      classifier,
		verifier:        verifier,
		blobs:           blobs,
		repo:            repo,
		events:          events,
		logger:          logger.With("component", "pipeline"),
		verifierTimeout: verifierCfg.Timeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *PipelineService) Analyze(ctx context.Context, image []byte, triggerReason string) (*AnalysisResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: request carried no image bytes", ErrEmptyImage)
	}

	trigger := NormalizeTrigger(triggerReason)
	mimeType, ext := sniffImage(image)
	s.logger.Info("analysis started", "trigger", trigger, "bytes", len(image), "mime", mimeType)

	// 1. Stage 1: 항상 실행
	stageOne := s.runStageOne(ctx, image)

	// 2. Stage 2: 조건부 실행
	var stageTwo *StageTwoOutcome
	if ShouldVerify(stageOne.Result, trigger) {
		outcome := s.runStageTwo(ctx, model.VerifyRequest{
			Image:         image,
			MIMEType:      mimeType,
			StageOne:      stageOne.Result,
			TriggerReason: trigger,
		})
		stageTwo = &outcome
	} else {
		s.logger.Info("verifier skipped", "trigger", trigger)
	}

	// 3. 최종 판정
	verdict := FinalVerdict(stageTwo)
	timestamp := s.now()

	// 4. 이미지 저장 (best-effort)
	name := BlobName(timestamp, trigger, verdict.Status, ext)
	imageURL, err := s.blobs.Put(ctx, name, image)
	if err != nil {
		s.logger.Warn("image save failed, continuing without image", "name", name, "error", err)
		imageURL = ""
	}

	detectionsJSON, err := model.EncodeDetections(stageOne.Result.Detections)
	if err != nil {
		// Detection은 숫자/문자열만 포함하므로 실제로는 발생하지 않음
		detectionsJSON = "[]"
	}

	// 5. Alert 저장 (실패 시 요청 실패)
	alert, err := s.repo.CreateAlert(ctx, model.AlertDraft{
		Timestamp:        timestamp,
		TriggerReason:    trigger,
		YoloFlag:         stageOne.Result.Flag,
		YoloDetections:   detectionsJSON,
		YoloConfidence:   stageOne.Result.Confidence,
		GeminiStatus:     verdict.Status,
		GeminiReason:     verdict.Reason,
		GeminiConfidence: verdict.Confidence,
		FinalStatus:      verdict.Status,
		ImageURL:         imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.logger.Info("alert stored", "alert_id", alert.ID, "final_status", alert.FinalStatus, "image_url", alert.ImageURL)

	// 6. 커밋된 Alert로 이벤트 발행 (id 포함)
	s.events.Publish(model.NewLiveAlertEvent(*alert))

	return &AnalysisResult{
		Alert:    *alert,
		StageOne: stageOne,
		StageTwo: stageTwo,
	}, nil
}

func (s *PipelineService) runStageOne(ctx context.Context, image []byte) StageOneOutcome {
	raw, err := s.classifier.Detect(ctx, image)
	if err != nil {
		s.logger.Error("stage 1 classifier failed, marking frame DANGER", "error", err)
		return StageOneOutcome{
			Result: model.StageOneResult{Flag: model.StatusDanger, Detections: []model.Detection{}, Confidence: 0},
			Cause:  err,
		}
	}

	result := FilterDetections(raw)
	s.logger.Info("stage 1 complete", "flag", result.Flag, "detections", len(result.Detections), "confidence", result.Confidence)
	return StageOneOutcome{Result: result}
}

func (s *PipelineService) runStageTwo(ctx context.Context, req model.VerifyRequest) StageTwoOutcome {
	if s.verifierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.verifierTimeout)
		defer cancel()
	}

	s.logger.Info("running verifier", "trigger", req.TriggerReason, "objects", strings.Join(req.DetectedClassNames(), ", "))
	result, err := s.verifier.Verify(ctx, req)
	if err == nil {
		if status, ok := model.ParseStatus(string(result.Status)); ok {
			result.Status = status
		} else {
			err = fmt.Errorf("verifier returned unknown status %q", result.Status)
		}
	}
	if err != nil {
		s.logger.Error("stage 2 verifier failed, marking frame DANGER", "error", err)
		return StageTwoOutcome{
			Result: model.StageTwoResult{
				Status:     model.StatusDanger,
				Reason:     fmt.Sprintf("AI verification failed: %v. Marked as DANGER for safety.", err),
				Confidence: DegradedVerifierConfidence,
			},
			Cause: err,
		}
	}

	result.Confidence = clamp01(result.Confidence)
	s.logger.Info("stage 2 complete", "status", result.Status, "confidence", result.Confidence)
	return StageTwoOutcome{Result: result}
}

// FilterDetections - 원시 탐지 결과를 DangerClasses로 필터링해 Stage 1 결과 생성
func FilterDetections(raw []model.Detection) model.StageOneResult {
	detections := []model.Detection{}
	maxConfidence := 0.0
	for _, d := range raw {
		name, ok := DangerClasses[d.ClassID]
		if !ok {
			continue
		}
		d.ClassName = name
		d.Confidence = clamp01(d.Confidence)
		detections = append(detections, d)
		maxConfidence = max(maxConfidence, d.Confidence)
	}

	flag := model.StatusSafe
	if len(detections) > 0 {
		flag = model.StatusDanger
	}
	return model.StageOneResult{Flag: flag, Detections: detections, Confidence: maxConfidence}
}

// ShouldVerify - Stage 2 실행 여부
// HOLE 트리거는 YOLO가 볼 수 없는 구조 결함(균열, 유실 도상 등)을 의미하므로 항상 검증
func ShouldVerify(stageOne model.StageOneResult, trigger string) bool {
	return stageOne.Flag == model.StatusDanger || trigger == model.TriggerHole
}

// FinalVerdict - 최종 판정 (gemini_* 컬럼에도 그대로 기록)
func FinalVerdict(stageTwo *StageTwoOutcome) model.StageTwoResult {
	if stageTwo != nil {
		return stageTwo.Result
	}
	return model.StageTwoResult{
		Status:     model.StatusSafe,
		Reason:     SkippedReason,
		Confidence: SkippedConfidence,
	}
}

// MaxTriggerRunes - 저장되는 trigger_reason 최대 글자 수
const MaxTriggerRunes = 50

// NormalizeTrigger - 앞뒤 공백 제거, 비어 있으면 UNKNOWN
// 잘못된 UTF-8 바이트는 제거하고 글자(rune) 단위로 50자까지 자른다.
func NormalizeTrigger(raw string) string {
	trigger := strings.TrimSpace(strings.ToValidUTF8(raw, ""))
	if trigger == "" {
		return model.DefaultTriggerReason
	}
	if utf8.RuneCountInString(trigger) > MaxTriggerRunes {
		runes := []rune(trigger)
		trigger = strings.TrimSpace(string(runes[:MaxTriggerRunes]))
	}
	return trigger
}

// BlobName - <timestamp>_<trigger>_<final_status>.<ext>
// timestamp는 UTC, 마이크로초까지 포함해 같은 초 안의 요청끼리 충돌하지 않게 한다.
func BlobName(ts time.Time, trigger string, final model.Status, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s_%s_%s%s", ts.UTC().Format("20060102_150405.000000"), fileSafe(trigger), final, ext)
}

func fileSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return model.DefaultTriggerReason
	}
	return b.String()
}

// sniffImage - MIME 타입과 저장 확장자 추정 (이미지가 아니면 JPEG로 간주)
func sniffImage(image []byte) (string, string) {
	mt := mimetype.Detect(image)
	if !strings.HasPrefix(mt.String(), "image/") {
		return defaultImageMIME, ".jpg"
	}
	ext := mt.Extension()
	if ext == ".jpeg" || ext == "" {
		ext = ".jpg"
	}
	return mt.String(), ext
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
