package model

// VerifyRequest - Stage 2 검증기에 전달하는 입력
// StageOne.Detections가 비어 있으면 검증기는 구조 결함 중심으로 넓게 탐색한다.
type VerifyRequest struct {
	Image         []byte
	MIMEType      string
	StageOne      StageOneResult
	TriggerReason string
}

// DetectedClassNames - Stage 1 탐지 클래스 이름 목록 (등장 순서, 중복 포함)
func (r VerifyRequest) DetectedClassNames() []string {
	names := make([]string, 0, len(r.StageOne.Detections))
	for _, d := range r.StageOne.Detections {
		names = append(names, d.ClassName)
	}
	return names
}
