// Stage 2 검증 프롬프트 생성과 Gemini 응답 파싱

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/railguard/backend/internal/model"
)

var ErrInvalidVerdict = errors.New("invalid verifier response")

const defaultVerdictConfidence = 0.5

// BuildVerifyPrompt - Stage 1 탐지 결과 유무에 따라 두 가지 프롬프트 중 하나를 생성
func BuildVerifyPrompt(req model.VerifyRequest) string {
	if req.StageOne.Flag == model.StatusDanger && len(req.StageOne.Detections) > 0 {
		objects := strings.Join(req.DetectedClassNames(), ", ")
		return fmt.Sprintf(`CRITICAL RAILWAY SAFETY ANALYSIS:

YOLOv8 detected: %[1]s

Verify if these detections are REAL THREATS to railway safety.

Analyze for:
1. Are the detected objects (%[1]s) on or near the tracks?
2. Rail Cracks or structural damage
3. Missing ballast or track misalignment
4. Any other obstacles not detected by YOLO

Return ONLY JSON:
{
    "status": "DANGER" or "SAFE",
    "reason": "Detailed explanation",
    "confidence": 0.0 to 1.0
}

Be CONSERVATIVE - if uncertain, mark as DANGER.`, objects)
	}

	return fmt.Sprintf(`CRITICAL RAILWAY SAFETY ANALYSIS:

Sensor Trigger: %[1]s
YOLOv8 Result: No objects detected

Analyze for hazards YOLO cannot see:
1. Rail Cracks or fractures
2. Missing ballast or track bed erosion
3. Track misalignment or gaps (HOLES)
4. Structural damage to sleepers
5. Any subtle defects

Return ONLY JSON:
{
    "status": "DANGER" or "SAFE",
    "reason": "Detailed explanation",
    "confidence": 0.0 to 1.0
}

Sensor detected "%[1]s" - investigate carefully.`, req.TriggerReason)
}

type rawVerdict struct {
	Status     *string `json:"status"`
	Reason     *string `json:"reason"`
	Confidence any     `json:"confidence"`
}

// ParseVerdict - 응답 텍스트에서 JSON 판정 추출
// 코드 펜스(```json, ```)는 벗겨내고, status/reason이 없거나 status가 SAFE/DANGER가 아니면 에러
func ParseVerdict(text string) (model.StageTwoResult, error) {
	body := stripCodeFence(strings.TrimSpace(text))
	if body == "" {
		return model.StageTwoResult{}, fmt.Errorf("%w: empty response", ErrInvalidVerdict)
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return model.StageTwoResult{}, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}
	if raw.Status == nil || raw.Reason == nil {
		return model.StageTwoResult{}, fmt.Errorf("%w: missing status or reason", ErrInvalidVerdict)
	}

	status, ok := model.ParseStatus(*raw.Status)
	if !ok {
		return model.StageTwoResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidVerdict, *raw.Status)
	}

	confidence, err := parseConfidence(raw.Confidence)
	if err != nil {
		return model.StageTwoResult{}, err
	}

	return model.StageTwoResult{Status: status, Reason: *raw.Reason, Confidence: confidence}, nil
}

func stripCodeFence(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		before, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(before)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		before, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(before)
	}
	return text
}

func parseConfidence(v any) (float64, error) {
	var f float64
	switch c := v.(type) {
	case nil:
		return defaultVerdictConfidence, nil
	case float64:
		f = c
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: confidence %q is not a number", ErrInvalidVerdict, c)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: confidence has type %T", ErrInvalidVerdict, v)
	}
	return clampRange(f, 0, 1), nil
}
