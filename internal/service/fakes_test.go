package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/railguard/backend/internal/model"
)

type fakeClassifier struct {
	detections []model.Detection
	err        error
	calls      int
}

func (f *fakeClassifier) Detect(_ context.Context, _ []byte) ([]model.Detection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

type fakeVerifier struct {
	result   model.StageTwoResult
	err      error
	block    bool
	requests []model.VerifyRequest
}

func (f *fakeVerifier) Verify(ctx context.Context, req model.VerifyRequest) (model.StageTwoResult, error) {
	f.requests = append(f.requests, req)
	if f.block {
		<-ctx.Done()
		return model.StageTwoResult{}, ctx.Err()
	}
	if f.err != nil {
		return model.StageTwoResult{}, f.err
	}
	return f.result, nil
}

type fakeBlobs struct {
	err   error
	names []string
}

func (f *fakeBlobs) Put(_ context.Context, name string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return "/storage/alerts/" + name, nil
}

type memoryRepo struct {
	mu     sync.Mutex
	alerts []model.Alert
	err    error
}

func (r *memoryRepo) CreateAlert(_ context.Context, draft model.AlertDraft) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a := model.Alert{
		ID:               int64(len(r.alerts) + 1),
		Timestamp:        draft.Timestamp,
		TriggerReason:    draft.TriggerReason,
		YoloFlag:         draft.YoloFlag,
		YoloDetections:   draft.YoloDetections,
		YoloConfidence:   draft.YoloConfidence,
		GeminiStatus:     draft.GeminiStatus,
		GeminiReason:     draft.GeminiReason,
		GeminiConfidence: draft.GeminiConfidence,
		FinalStatus:      draft.FinalStatus,
		ImageURL:         draft.ImageURL,
		CreatedAt:        draft.Timestamp,
	}
	r.alerts = append(r.alerts, a)
	return &a, nil
}

func (r *memoryRepo) ListRecentAlerts(_ context.Context, limit int) ([]model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := append([]model.Alert(nil), r.alerts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) LatestAlert(ctx context.Context) (*model.Alert, error) {
	list, err := r.ListRecentAlerts(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *memoryRepo) add(ts time.Time, status model.Status) {
	_, _ = r.CreateAlert(context.Background(), model.AlertDraft{
		Timestamp:     ts,
		TriggerReason: "VIBRATION",
		FinalStatus:   status,
		GeminiStatus:  status,
		GeminiReason:  "reason-" + string(status),
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LiveAlertEvent
}

func (p *recordingPublisher) Publish(ev model.LiveAlertEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

var errBoom = errors.New("boom")
