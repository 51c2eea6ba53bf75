// Stage 1 분류기: YOLOv8 ONNX 모델을 onnxruntime으로 실행
//
// 환경변수:
//   - YOLO_MODEL_PATH: yolov8n.onnx 경로
//   - ONNXRUNTIME_LIB: onnxruntime 공유 라이브러리 경로 (없으면 시스템 기본값)
//   - YOLO_CONFIDENCE / YOLO_IOU: 탐지 임계값, NMS IoU 임계값
//   - YOLO_POOL_SIZE: 동시에 추론할 수 있는 세션 수
//
// 세션은 입출력 텐서를 고정으로 물고 있어 동시에 한 요청만 사용할 수 있다.
// 그래서 세션 풀에서 빌려 쓰고 반납한다.

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

var ErrClassifierClosed = errors.New("classifier is closed")

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

type yoloSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *yoloSession) destroy() {
	s.session.Destroy()
	s.input.Destroy()
	s.output.Destroy()
}

// YOLOClassifier - service.FastClassifier 구현
type YOLOClassifier struct {
	sessions   chan *yoloSession
	size       int
	confidence float64
	iou        float64
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewYOLOClassifier(cfg config.ClassifierConfig, logger *slog.Logger) (*YOLOClassifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := initONNXRuntime(cfg.SharedLibPath); err != nil {
		return nil, err
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = 1
	}

	c := &YOLOClassifier{
		sessions:   make(chan *yoloSession, size),
		size:       size,
		confidence: cfg.Confidence,
		iou:        cfg.IoU,
		logger:     logger.With("component", "yolo"),
	}
	for i := 0; i < size; i++ {
		s, err := newYOLOSession(cfg.ModelPath, size)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		c.sessions <- s
	}

	c.logger.Info("yolo classifier ready", "model", cfg.ModelPath, "pool_size", size)
	return c, nil
}

func initONNXRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitErr = fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	})
	return ortInitErr
}

func newYOLOSession(modelPath string, poolSize int) (*yoloSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	threads := max(1, runtime.NumCPU()/poolSize)
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, yoloInputSize, yoloInputSize))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 4+yoloNumClasses, yoloNumAnchors))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &yoloSession{session: session, input: input, output: output}, nil
}

// Detect - 이미지 바이트에서 COCO 객체 탐지 (클래스 필터링은 호출자 몫)
func (c *YOLOClassifier) Detect(ctx context.Context, data []byte) ([]model.Detection, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	s, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.release(s)

	prepareInput(img, s.input.GetData())
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	bounds := img.Bounds()
	raw := decodeOutput(s.output.GetData(), yoloNumClasses, yoloNumAnchors, bounds.Dx(), bounds.Dy(), c.confidence)
	detections := nonMaxSuppression(raw, c.iou)
	c.logger.Debug("yolo inference done", "candidates", len(raw), "detections", len(detections))
	return detections, nil
}

func (c *YOLOClassifier) acquire(ctx context.Context) (*yoloSession, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClassifierClosed
	}

	select {
	case s, ok := <-c.sessions:
		if !ok {
			return nil, ErrClassifierClosed
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *YOLOClassifier) release(s *yoloSession) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		s.destroy()
		return
	}
	c.sessions <- s
}

// Close - 풀에 남은 세션 해제 (사용 중인 세션은 반납 시 해제)
func (c *YOLOClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.sessions)
	for s := range c.sessions {
		s.destroy()
	}
}

// prepareInput - 640x640으로 리사이즈 후 NCHW, 0..1 정규화
func prepareInput(img image.Image, dst []float32) {
	resized := imaging.Resize(img, yoloInputSize, yoloInputSize, imaging.Linear)
	channelSize := yoloInputSize * yoloInputSize

	for y := 0; y < yoloInputSize; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < yoloInputSize; x++ {
			i := y*yoloInputSize + x
			dst[i] = float32(row[x*4]) / 255.0
			dst[channelSize+i] = float32(row[x*4+1]) / 255.0
			dst[2*channelSize+i] = float32(row[x*4+2]) / 255.0
		}
	}
}
