package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/model"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type pipelineFixture struct {
	classifier *fakeClassifier
	verifier   *fakeVerifier
	blobs      *fakeBlobs
	repo       *memoryRepo
	events     *recordingPublisher
	svc        *PipelineService
}

func newPipelineFixture(cfg config.VerifierConfig) *pipelineFixture {
	f := &pipelineFixture{
		classifier: &fakeClassifier{},
		verifier:   &fakeVerifier{result: model.StageTwoResult{Status: model.StatusDanger, Reason: "car on track", Confidence: 0.95}},
		blobs:      &fakeBlobs{},
		repo:       &memoryRepo{},
		events:     &recordingPublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewPipelineService(f.classifier, f.verifier, f.blobs, f.repo, f.events, cfg, logger)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

var frame = []byte("\xff\xd8\xff\xe0 not really a jpeg")

func TestAnalyzeRejectsEmptyImage(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})

	_, err := f.svc.Analyze(context.Background(), nil, "OBSTACLE")
	if !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	if f.classifier.calls != 0 || len(f.repo.alerts) != 0 || len(f.events.events) != 0 || len(f.blobs.names) != 0 {
		t.Fatalf("empty image must not touch any dependency")
	}
}

func TestAnalyzeDangerDetectionIsVerified(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	f.classifier.detections = []model.Detection{
		{ClassID: 2, Confidence: 0.88, BBox: [4]float64{10, 20, 200, 180}},
		{ClassID: 62, Confidence: 0.99, BBox: [4]float64{0, 0, 5, 5}},
	}

	res, err := f.svc.Analyze(context.Background(), frame, "OBSTACLE")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	wantStageOne := model.StageOneResult{
		Flag: model.StatusDanger,
		Detections: []model.Detection{
			{ClassID: 2, ClassName: "Car", Confidence: 0.88, BBox: [4]float64{10, 20, 200, 180}},
		},
		Confidence: 0.88,
	}
	if diff := cmp.Diff(wantStageOne, res.StageOne.Result); diff != "" {
		t.Fatalf("stage one mismatch (-want +got):\n%s", diff)
	}
	if len(f.verifier.requests) != 1 {
		t.Fatalf("expected verifier to run once, got %d", len(f.verifier.requests))
	}
	req := f.verifier.requests[0]
	if req.TriggerReason != "OBSTACLE" || req.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected verify request %+v", req)
	}
	if diff := cmp.Diff([]string{"Car"}, req.DetectedClassNames()); diff != "" {
		t.Fatalf("verifier saw wrong classes (-want +got):\n%s", diff)
	}

	if res.StageTwo == nil || res.StageTwo.Degraded() {
		t.Fatalf("expected successful stage two, got %+v", res.StageTwo)
	}
	if res.FinalStatus() != model.StatusDanger {
		t.Fatalf("expected DANGER, got %s", res.FinalStatus())
	}

	stored := f.repo.alerts[0]
	if stored.GeminiReason != "car on track" || stored.GeminiConfidence != 0.95 || stored.FinalStatus != stored.GeminiStatus {
		t.Fatalf("unexpected stored alert %+v", stored)
	}
	detections, err := model.DecodeDetections(stored.YoloDetections)
	if err != nil {
		t.Fatalf("DecodeDetections: %v", err)
	}
	if diff := cmp.Diff(wantStageOne.Detections, detections); diff != "" {
		t.Fatalf("stored detections mismatch (-want +got):\n%s", diff)
	}
	if stored.ImageURL != "/storage/alerts/20250301_120000.000000_OBSTACLE_DANGER.jpg" {
		t.Fatalf("unexpected image url %q", stored.ImageURL)
	}
}

func TestAnalyzeSkipsVerifierWhenNothingDetected(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	f.classifier.detections = []model.Detection{{ClassID: 62, Confidence: 0.9}}

	res, err := f.svc.Analyze(context.Background(), frame, "VIBRATION")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(f.verifier.requests) != 0 {
		t.Fatalf("verifier must not run for SAFE stage one with non-HOLE trigger")
	}
	if res.StageTwo != nil {
		t.Fatalf("expected nil stage two, got %+v", res.StageTwo)
	}

	want := model.Alert{
		ID:               1,
		Timestamp:        fixedNow,
		TriggerReason:    "VIBRATION",
		YoloFlag:         model.StatusSafe,
		YoloDetections:   "[]",
		YoloConfidence:   0,
		GeminiStatus:     model.StatusSafe,
		GeminiReason:     SkippedReason,
		GeminiConfidence: SkippedConfidence,
		FinalStatus:      model.StatusSafe,
		ImageURL:         "/storage/alerts/20250301_120000.000000_VIBRATION_SAFE.jpg",
		CreatedAt:        fixedNow,
	}
	if diff := cmp.Diff(want, res.Alert); diff != "" {
		t.Fatalf("alert mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeHoleTriggerForcesVerifier(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	f.verifier.result = model.StageTwoResult{Status: "safe", Reason: "track intact", Confidence: 0.7}

	res, err := f.svc.Analyze(context.Background(), frame, "HOLE")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(f.verifier.requests) != 1 {
		t.Fatalf("HOLE trigger must run the verifier")
	}
	if len(f.verifier.requests[0].StageOne.Detections) != 0 {
		t.Fatalf("expected empty detections in verify request")
	}
	if res.FinalStatus() != model.StatusSafe {
		t.Fatalf("expected normalized SAFE, got %s", res.FinalStatus())
	}
}

func TestAnalyzeClassifierFailureDefaultsToDanger(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	f.classifier.err = errBoom
	f.verifier.result = model.StageTwoResult{Status: model.StatusSafe, Reason: "clear track", Confidence: 0.8}

	res, err := f.svc.Analyze(context.Background(), frame, "VIBRATION")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.StageOne.Degraded() || !errors.Is(res.StageOne.Cause, errBoom) {
		t.Fatalf("expected degraded stage one, got %+v", res.StageOne)
	}
	want := model.StageOneResult{Flag: model.StatusDanger, Detections: []model.Detection{}, Confidence: 0}
	if diff := cmp.Diff(want, res.StageOne.Result); diff != "" {
		t.Fatalf("stage one mismatch (-want +got):\n%s", diff)
	}
	if len(f.verifier.requests) != 1 {
		t.Fatalf("degraded stage one must be verified")
	}
	// 최종 판정은 Stage 2 결과를 따른다
	if res.FinalStatus() != model.StatusSafe {
		t.Fatalf("expected verifier verdict SAFE, got %s", res.FinalStatus())
	}
}

func TestAnalyzeVerifierFailureDefaultsToDanger(t *testing.T) {
	tests := []struct {
		name   string
		result model.StageTwoResult
		err    error
	}{
		{name: "error", err: errBoom},
		{name: "unknown-status", result: model.StageTwoResult{Status: "MAYBE", Reason: "unsure", Confidence: 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(config.VerifierConfig{})
			f.verifier.result = tt.result
			f.verifier.err = tt.err

			res, err := f.svc.Analyze(context.Background(), frame, "HOLE")
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if res.StageTwo == nil || !res.StageTwo.Degraded() {
				t.Fatalf("expected degraded stage two, got %+v", res.StageTwo)
			}
			got := res.StageTwo.Result
			if got.Status != model.StatusDanger || got.Confidence != DegradedVerifierConfidence {
				t.Fatalf("unexpected degraded result %+v", got)
			}
			if !strings.HasPrefix(got.Reason, "AI verification failed: ") || !strings.HasSuffix(got.Reason, ". Marked as DANGER for safety.") {
				t.Fatalf("unexpected reason %q", got.Reason)
			}
			if res.FinalStatus() != model.StatusDanger {
				t.Fatalf("expected DANGER, got %s", res.FinalStatus())
			}
		})
	}
}

func TestAnalyzeVerifierTimeout(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{Timeout: 20 * time.Millisecond})
	f.verifier.block = true

	res, err := f.svc.Analyze(context.Background(), frame, "HOLE")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !errors.Is(res.StageTwo.Cause, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.StageTwo.Cause)
	}
	if res.FinalStatus() != model.StatusDanger {
		t.Fatalf("expected DANGER on timeout, got %s", res.FinalStatus())
	}
}

func TestAnalyzeBlobFailureStillPersists(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	f.blobs.err = errBoom

	res, err := f.svc.Analyze(context.Background(), frame, "VIBRATION")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ImageURL() != "" || f.repo.alerts[0].ImageURL != "" {
		t.Fatalf("expected empty image url, got %q", res.ImageURL())
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected event to be published")
	}
}

func TestAnalyzePersistenceFailure(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	f.repo.err = errBoom

	_, err := f.svc.Analyze(context.Background(), frame, "VIBRATION")
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, errBoom) {
		t.Fatalf("expected ErrPersistence wrapping cause, got %v", err)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("nothing must be published when persistence fails")
	}
}

func TestAnalyzePublishesStoredAlertOnce(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Analyze(context.Background(), frame, ""); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}
	if len(f.events.events) != 3 {
		t.Fatalf("expected one event per analysis, got %d", len(f.events.events))
	}
	for i, ev := range f.events.events {
		if diff := cmp.Diff(f.repo.alerts[i], ev.Alert); diff != "" {
			t.Fatalf("event %d differs from stored alert (-want +got):\n%s", i, diff)
		}
		if ev.TriggerReason != model.DefaultTriggerReason {
			t.Fatalf("expected default trigger, got %q", ev.TriggerReason)
		}
	}
}

func TestAnalyzeUsesSniffedExtension(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	res, err := f.svc.Analyze(context.Background(), buf.Bytes(), "HOLE")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.HasSuffix(res.ImageURL(), "_HOLE_DANGER.png") {
		t.Fatalf("unexpected image url %q", res.ImageURL())
	}
	if f.verifier.requests[0].MIMEType != "image/png" {
		t.Fatalf("unexpected mime %q", f.verifier.requests[0].MIMEType)
	}
}

func TestFilterDetections(t *testing.T) {
	for id, name := range DangerClasses {
		res := FilterDetections([]model.Detection{{ClassID: id, Confidence: 0.5}})
		if res.Flag != model.StatusDanger || res.Detections[0].ClassName != name {
			t.Fatalf("class %d not treated as danger: %+v", id, res)
		}
	}

	res := FilterDetections([]model.Detection{{ClassID: 4, Confidence: 0.9}, {ClassID: 56, Confidence: 0.8}})
	if res.Flag != model.StatusSafe || len(res.Detections) != 0 || res.Confidence != 0 {
		t.Fatalf("non-danger classes must be dropped: %+v", res)
	}

	res = FilterDetections([]model.Detection{{ClassID: 0, Confidence: 0.4}, {ClassID: 19, Confidence: 0.7}})
	if res.Confidence != 0.7 {
		t.Fatalf("expected max confidence 0.7, got %v", res.Confidence)
	}
}

func TestShouldVerify(t *testing.T) {
	danger := model.StageOneResult{Flag: model.StatusDanger}
	safe := model.StageOneResult{Flag: model.StatusSafe}

	if !ShouldVerify(danger, "VIBRATION") || !ShouldVerify(safe, "HOLE") || !ShouldVerify(danger, "HOLE") {
		t.Fatalf("expected verification")
	}
	if ShouldVerify(safe, "VIBRATION") || ShouldVerify(safe, "hole") {
		t.Fatalf("unexpected verification")
	}
}

func TestBlobName(t *testing.T) {
	ts := time.Date(2025, 3, 1, 21, 4, 5, 123456000, time.FixedZone("KST", 9*3600))
	tests := []struct {
		trigger string
		ext     string
		want    string
	}{
		{"HOLE", ".jpg", "20250301_120405.123456_HOLE_DANGER.jpg"},
		{"OBSTACLE", "png", "20250301_120405.123456_OBSTACLE_DANGER.png"},
		{"../etc/passwd", "", "20250301_120405.123456_---etc-passwd_DANGER.jpg"},
	}
	for _, tt := range tests {
		if got := BlobName(ts, tt.trigger, model.StatusDanger, tt.ext); got != tt.want {
			t.Fatalf("BlobName(%q) = %q, want %q", tt.trigger, got, tt.want)
		}
	}
}

func TestNormalizeTrigger(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "blank", raw: "  ", want: model.DefaultTriggerReason},
		{name: "trimmed", raw: " HOLE ", want: "HOLE"},
		{name: "ascii-truncated", raw: strings.Repeat("x", 80), want: strings.Repeat("x", 50)},
		{name: "multibyte-at-limit", raw: strings.Repeat("A", 49) + "훌", want: strings.Repeat("A", 49) + "훌"},
		{name: "multibyte-truncated", raw: strings.Repeat("훌", 60), want: strings.Repeat("훌", 50)},
		{name: "invalid-bytes-dropped", raw: "HOLE\xed\xa0", want: "HOLE"},
		{name: "only-invalid-bytes", raw: "\xff\xfe", want: model.DefaultTriggerReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrigger(tt.raw)
			if got != tt.want {
				t.Fatalf("NormalizeTrigger(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("NormalizeTrigger(%q) returned invalid UTF-8 %q", tt.raw, got)
			}
		})
	}
}

func TestAnalyzePersistsValidUTF8Trigger(t *testing.T) {
	f := newPipelineFixture(config.VerifierConfig{})

	trigger := strings.Repeat("A", 49) + "훌훌"
	if _, err := f.svc.Analyze(context.Background(), []byte("x"), trigger); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(f.repo.alerts) != 1 {
		t.Fatalf("expected one stored alert, got %d", len(f.repo.alerts))
	}
	stored := f.repo.alerts[0].TriggerReason
	if !utf8.ValidString(stored) || stored != strings.Repeat("A", 49)+"훌" {
		t.Fatalf("unexpected stored trigger %q", stored)
	}
}
