// Stage 2 검증기: 프레임과 Stage 1 결과를 Gemini에 보내 위험 여부를 재판정
//
// 환경변수:
//   - GEMINI_API_KEY: Gemini API Key (없으면 AI_API_KEY 사용)
//   - GEMINI_MODEL: 모델 이름 (기본 gemini-2.5-pro)

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/model"
	"google.golang.org/genai"
)

var ErrVerifierNotConfigured = errors.New("gemini api key not configured")

// contentGenerator - genai.Models의 GenerateContent만 추출 (테스트 교체용)
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiVerifier - service.Verifier 구현
type GeminiVerifier struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

func NewGeminiVerifier(ctx context.Context, cfg config.VerifierConfig, logger *slog.Logger) (*GeminiVerifier, error) {
	if cfg.APIKey == "" {
		return nil, ErrVerifierNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiVerifier(client.Models, cfg.Model, logger), nil
}

func newGeminiVerifier(models contentGenerator, modelName string, logger *slog.Logger) *GeminiVerifier {
	return &GeminiVerifier{
		models: models,
		model:  modelName,
		logger: logger.With("component", "gemini", "model", modelName),
	}
}

// Verify - 프롬프트 + 이미지로 판정 요청 후 JSON 응답 파싱
func (v *GeminiVerifier) Verify(ctx context.Context, req model.VerifyRequest) (model.StageTwoResult, error) {
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(BuildVerifyPrompt(req)),
		genai.NewPartFromBytes(req.Image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := v.models.GenerateContent(ctx, v.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return model.StageTwoResult{}, fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	v.logger.Debug("gemini response", "chars", len(text))

	result, err := ParseVerdict(text)
	if err != nil {
		return model.StageTwoResult{}, err
	}
	return result, nil
}
