// YOLOv8 출력 텐서 해석 (ONNX Runtime 없이 테스트 가능한 순수 함수)
//
// 출력 텐서 [1, 4+C, N] 레이아웃 (행 우선):
//   - 행 0..3: cx, cy, w, h (입력 해상도 픽셀 좌표)
//   - 행 4..4+C-1: 클래스별 점수

package client

import (
	"sort"

	"github.com/railguard/backend/internal/model"
)

const (
	yoloInputSize  = 640
	yoloNumClasses = 80
	yoloNumAnchors = 8400
)

var cocoNames = [yoloNumClasses]string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat", "traffic light",
	"fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant", "bed",
	"dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

func cocoName(classID int) string {
	if classID < 0 || classID >= len(cocoNames) {
		return ""
	}
	return cocoNames[classID]
}

// decodeOutput - 임계값 이상의 anchor를 원본 이미지 좌표의 Detection으로 변환
func decodeOutput(pred []float32, numClasses, numAnchors, origW, origH int, threshold float64) []model.Detection {
	if len(pred) < (4+numClasses)*numAnchors {
		return nil
	}

	scaleX := float64(origW) / yoloInputSize
	scaleY := float64(origH) / yoloInputSize

	var out []model.Detection
	for i := 0; i < numAnchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := pred[(4+c)*numAnchors+i]; s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || float64(bestScore) < threshold {
			continue
		}

		cx := float64(pred[i])
		cy := float64(pred[numAnchors+i])
		w := float64(pred[2*numAnchors+i])
		h := float64(pred[3*numAnchors+i])

		out = append(out, model.Detection{
			ClassID:    bestClass,
			ClassName:  cocoName(bestClass),
			Confidence: float64(bestScore),
			BBox: [4]float64{
				clampRange((cx-w/2)*scaleX, 0, float64(origW)),
				clampRange((cy-h/2)*scaleY, 0, float64(origH)),
				clampRange((cx+w/2)*scaleX, 0, float64(origW)),
				clampRange((cy+h/2)*scaleY, 0, float64(origH)),
			},
		})
	}
	return out
}

// nonMaxSuppression - 클래스별 NMS, 신뢰도 내림차순으로 반환
func nonMaxSuppression(detections []model.Detection, iouThreshold float64) []model.Detection {
	sorted := append([]model.Detection(nil), detections...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]model.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && iou(k.BBox, d.BBox) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b [4]float64) float64 {
	ix1, iy1 := max(a[0], b[0]), max(a[1], b[1])
	ix2, iy2 := min(a[2], b[2]), min(a[3], b[3])
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b [4]float64) float64 {
	return max(0, b[2]-b[0]) * max(0, b[3]-b[1])
}

func clampRange(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
