package client

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/railguard/backend/internal/model"
)

// syntheticOutput - anchor 하나에 박스와 클래스 점수를 채운 [4+C, N] 텐서
type anchor struct {
	cx, cy, w, h float32
	class        int
	score        float32
}

func syntheticOutput(numClasses, numAnchors int, anchors ...anchor) []float32 {
	pred := make([]float32, (4+numClasses)*numAnchors)
	for i, a := range anchors {
		pred[i] = a.cx
		pred[numAnchors+i] = a.cy
		pred[2*numAnchors+i] = a.w
		pred[3*numAnchors+i] = a.h
		pred[(4+a.class)*numAnchors+i] = a.score
	}
	return pred
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestDecodeOutputScalesToOriginal(t *testing.T) {
	pred := syntheticOutput(80, 10,
		anchor{cx: 320, cy: 320, w: 64, h: 128, class: 2, score: 0.9},
		anchor{cx: 100, cy: 100, w: 10, h: 10, class: 0, score: 0.1},
	)

	got := decodeOutput(pred, 80, 10, 1280, 640, 0.25)
	if len(got) != 1 {
		t.Fatalf("expected 1 detection above threshold, got %d", len(got))
	}
	d := got[0]
	if d.ClassID != 2 || d.ClassName != "car" || !almostEqual(d.Confidence, 0.9) {
		t.Fatalf("unexpected detection %+v", d)
	}
	want := [4]float64{576, 256, 704, 384}
	for i := range want {
		if !almostEqual(d.BBox[i], want[i]) {
			t.Fatalf("bbox = %v, want %v", d.BBox, want)
		}
	}
}

func TestDecodeOutputClampsToImage(t *testing.T) {
	pred := syntheticOutput(80, 4, anchor{cx: 5, cy: 635, w: 40, h: 40, class: 16, score: 0.5})

	got := decodeOutput(pred, 80, 4, 640, 640, 0.25)
	if len(got) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(got))
	}
	if got[0].BBox[0] != 0 || got[0].BBox[3] != 640 {
		t.Fatalf("bbox not clamped: %v", got[0].BBox)
	}
}

func TestDecodeOutputShortTensor(t *testing.T) {
	if got := decodeOutput(make([]float32, 10), 80, 8400, 640, 640, 0.25); got != nil {
		t.Fatalf("expected nil for short tensor, got %v", got)
	}
}

func TestNonMaxSuppression(t *testing.T) {
	detections := []model.Detection{
		{ClassID: 0, Confidence: 0.6, BBox: [4]float64{12, 12, 110, 110}},
		{ClassID: 0, Confidence: 0.9, BBox: [4]float64{10, 10, 100, 100}},
		{ClassID: 2, Confidence: 0.5, BBox: [4]float64{10, 10, 100, 100}},
		{ClassID: 0, Confidence: 0.4, BBox: [4]float64{300, 300, 400, 400}},
	}

	got := nonMaxSuppression(detections, 0.45)
	if len(got) != 3 {
		t.Fatalf("expected 3 detections after NMS, got %d: %+v", len(got), got)
	}
	if got[0].Confidence != 0.9 || got[1].ClassID != 2 || got[2].Confidence != 0.4 {
		t.Fatalf("unexpected NMS order %+v", got)
	}
}

func TestIoU(t *testing.T) {
	if v := iou([4]float64{0, 0, 10, 10}, [4]float64{0, 0, 10, 10}); !almostEqual(v, 1) {
		t.Fatalf("identical boxes iou = %v", v)
	}
	if v := iou([4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}); v != 0 {
		t.Fatalf("disjoint boxes iou = %v", v)
	}
	if v := iou([4]float64{0, 0, 10, 10}, [4]float64{5, 0, 15, 10}); !almostEqual(v, 50.0/150.0) {
		t.Fatalf("half overlap iou = %v", v)
	}
}

func TestPrepareInputNCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}

	dst := make([]float32, 3*yoloInputSize*yoloInputSize)
	prepareInput(img, dst)

	plane := yoloInputSize * yoloInputSize
	for _, i := range []int{0, plane / 2, plane - 1} {
		if !almostEqual(float64(dst[i]), 1) || dst[plane+i] != 0 || !almostEqual(float64(dst[2*plane+i]), 0.2) {
			t.Fatalf("unexpected pixel %d: r=%v g=%v b=%v", i, dst[i], dst[plane+i], dst[2*plane+i])
		}
	}
}
