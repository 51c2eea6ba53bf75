package client

import (
	"context"
	"fmt"

	"github.com/railguard/backend/internal/model"
)

// Unavailable - 초기화에 실패한 분류기/검증기 자리에 넣는 대체 구현
// 모든 호출이 초기화 에러를 반환하므로 파이프라인은 DANGER 쪽으로 degrade 된다.
type Unavailable struct {
	Component string
	Err       error
}

func (u Unavailable) unavailable() error {
	return fmt.Errorf("%s unavailable: %w", u.Component, u.Err)
}

func (u Unavailable) Detect(context.Context, []byte) ([]model.Detection, error) {
	return nil, u.unavailable()
}

func (u Unavailable) Verify(context.Context, model.VerifyRequest) (model.StageTwoResult, error) {
	return model.StageTwoResult{}, u.unavailable()
}
