// 실시간 Alert 이벤트 전파
//
// 두 가지 fan-out 모드:
//   - broadcast (기본): 구독자마다 독립된 큐. 모든 구독자가 모든 이벤트를 받는다.
//   - shared: 모든 구독자가 하나의 큐를 공유. 각 이벤트는 한 구독자에게만 전달된다.
//
// Tap은 모드와 관계없이 전용 큐를 만든다 (Slack/Kafka relay 같은 내부 소비자용).
// 큐는 무제한이며 Publish는 절대 블록되지 않는다. 느린 구독자는 메모리만 더 쓴다.

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/railguard/backend/internal/model"
)

type FanoutMode string

const (
	FanoutBroadcast FanoutMode = "broadcast"
	FanoutShared    FanoutMode = "shared"
)

func ParseFanoutMode(raw string) (FanoutMode, error) {
	switch FanoutMode(raw) {
	case "", FanoutBroadcast:
		return FanoutBroadcast, nil
	case FanoutShared:
		return FanoutShared, nil
	default:
		return "", fmt.Errorf("unknown events fanout mode %q", raw)
	}
}

// eventQueue - mutex로 보호되는 FIFO + 깨우기용 1칸 채널
type eventQueue struct {
	mu     sync.Mutex
	items  []model.LiveAlertEvent
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev model.LiveAlertEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop(ctx context.Context) (model.LiveAlertEvent, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = model.LiveAlertEvent{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			// shared 모드에서 다른 대기자가 남은 이벤트를 가져갈 수 있도록
			if remaining > 0 {
				q.signal()
			}
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return model.LiveAlertEvent{}, ctx.Err()
		}
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Broadcaster 구조체 정의
type Broadcaster struct {
	mode   FanoutMode
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]*eventQueue
	nextID uint64
	shared *eventQueue
}

// Broadcaster 객체 생성
func NewBroadcaster(mode FanoutMode, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		mode:   mode,
		logger: logger.With("component", "broadcaster"),
		subs:   make(map[uint64]*eventQueue),
	}
	if mode == FanoutShared {
		b.shared = newEventQueue()
	}
	return b
}

// Publish - 현재 등록된 모든 큐에 이벤트 추가 (블록되지 않음)
// Publish 이후에 구독한 소비자는 이 이벤트를 받지 않는다.
func (b *Broadcaster) Publish(event model.LiveAlertEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.shared != nil {
		b.shared.push(event)
	}
	for _, q := range b.subs {
		q.push(event)
	}
	b.logger.Debug("event published", "alert_id", event.ID, "subscribers", len(b.subs))
}

// Subscribe - 외부 리스너(SSE)용 구독
func (b *Broadcaster) Subscribe() *Subscription {
	if b.mode == FanoutShared {
		return &Subscription{queue: b.shared}
	}
	return b.Tap()
}

// Tap - 모드와 관계없이 모든 이벤트를 받는 전용 구독
func (b *Broadcaster) Tap() *Subscription {
	q := newEventQueue()

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = q
	b.mu.Unlock()

	return &Subscription{
		queue: q,
		release: func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		},
	}
}

// SubscriberCount - 전용 큐를 가진 구독자 수
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Subscription - 이벤트 수신 핸들
type Subscription struct {
	queue   *eventQueue
	release func()
	once    sync.Once
}

// Next - 다음 이벤트를 받을 때까지 대기 (ctx 취소 시 ctx.Err 반환)
func (s *Subscription) Next(ctx context.Context) (model.LiveAlertEvent, error) {
	return s.queue.pop(ctx)
}

// Pending - 아직 읽지 않은 이벤트 수
func (s *Subscription) Pending() int {
	return s.queue.len()
}

// Close - 구독 해제 (여러 번 호출해도 안전)
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
