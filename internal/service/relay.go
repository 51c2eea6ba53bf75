// 저장된 Alert 이벤트를 외부 시스템(Slack, Kafka)으로 중계
// sink마다 Broadcaster.Tap으로 전용 구독을 만들기 때문에 느린 sink가 다른 sink나 SSE를 막지 않는다.

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mdobak/go-xerrors"
	"github.com/railguard/backend/internal/model"
)

// AlertSink - Alert 이벤트를 외부로 전달하는 대상
// 전달할 필요가 없는 이벤트(예: SAFE)는 sink가 스스로 무시하고 nil을 반환한다.
type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, event model.LiveAlertEvent) error
}

type Relay struct {
	broadcaster *Broadcaster
	sinks       []AlertSink
	logger      *slog.Logger
}

func NewRelay(broadcaster *Broadcaster, logger *slog.Logger, sinks ...AlertSink) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		broadcaster: broadcaster,
		sinks:       sinks,
		logger:      logger.With("component", "relay"),
	}
}

// Start - sink별 구독을 즉시 등록하고 전달 루프를 시작
// 반환된 채널은 ctx 취소 후 모든 루프가 끝나면 닫힌다.
func (r *Relay) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, sink := range r.sinks {
		sub := r.broadcaster.Tap()
		wg.Add(1)
		go func(sink AlertSink, sub *Subscription) {
			defer wg.Done()
			defer sub.Close()
			r.run(ctx, sink, sub)
		}(sink, sub)
	}

	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (r *Relay) run(ctx context.Context, sink AlertSink, sub *Subscription) {
	logger := r.logger.With("sink", sink.Name())
	logger.Info("relay started")

	for {
		event, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info("relay stopped")
				return
			}
			logger.Error("relay stopped", slog.Any("error", xerrors.New(err)))
			return
		}

		if err := sink.Deliver(ctx, event); err != nil {
			logger.Error("failed to deliver alert", "alert_id", event.ID, slog.Any("error", xerrors.New(err)))
			continue
		}
	}
}
