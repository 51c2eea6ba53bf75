// 저장된 Alert를 Kafka 토픽으로 발행하는 Producer
//
// 환경변수:
//   - KAFKA_BOOTSTRAP_SERVERS: 비어 있으면 relay 비활성화
//   - KAFKA_TOPIC, KAFKA_ACKS, KAFKA_COMPRESSION_TYPE
//   - KAFKA_SECURITY_PROTOCOL, KAFKA_SASL_MECHANISM/USERNAME/PASSWORD
//
// 메시지 key는 alert id, value는 Alert JSON (SSE 이벤트와 동일한 형태)

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/mdobak/go-xerrors"
	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/model"
)

const kafkaFlushTimeout = 10 * time.Second

type AlertProducer struct {
	producer     *kafka.Producer
	topic        string
	deliveryChan chan kafka.Event
	logger       *slog.Logger

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

func NewAlertProducer(cfg config.KafkaConfig, logger *slog.Logger) (*AlertProducer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := kafka.NewProducer(producerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	ap := &AlertProducer{
		producer:     p,
		topic:        cfg.Topic,
		deliveryChan: make(chan kafka.Event, 1000),
		logger:       logger.With("component", "kafka", "topic", cfg.Topic),
		done:         make(chan struct{}),
	}

	ap.wg.Add(1)
	go ap.handleDeliveryReports()

	ap.logger.Info("kafka producer initialized", "servers", cfg.BootstrapServers)
	return ap, nil
}

func producerConfig(cfg config.KafkaConfig) *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"security.protocol":  cfg.SecurityProtocol,
		"compression.type":   cfg.CompressionType,
		"acks":               cfg.Acks,
		"enable.idempotence": true,
		"request.timeout.ms": 30000,
	}
	if cfg.SASLMechanism != "" {
		_ = cm.SetKey("sasl.mechanism", cfg.SASLMechanism)
		_ = cm.SetKey("sasl.username", cfg.SASLUsername)
		_ = cm.SetKey("sasl.password", cfg.SASLPassword)
	}
	return cm
}

func (p *AlertProducer) handleDeliveryReports() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case e := <-p.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				p.failed.Add(1)
				p.logger.Error("alert delivery failed", "key", string(m.Key), slog.Any("error", xerrors.New(m.TopicPartition.Error)))
				continue
			}
			p.acked.Add(1)
			p.logger.Debug("alert delivered", "key", string(m.Key), "partition", m.TopicPartition.Partition, "offset", m.TopicPartition.Offset.String())
		}
	}
}

func (p *AlertProducer) Name() string { return "kafka" }

// Deliver - Alert 이벤트를 토픽에 enqueue (delivery report는 비동기로 처리)
func (p *AlertProducer) Deliver(ctx context.Context, event model.LiveAlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildAlertMessage(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(msg, p.deliveryChan); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to produce alert %d: %w", event.ID, err)
	}
	p.sent.Add(1)
	return nil
}

func buildAlertMessage(topic string, event model.LiveAlertEvent) (*kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize alert: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(strconv.FormatInt(event.ID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "final_status", Value: []byte(event.FinalStatus)},
			{Key: "trigger_reason", Value: []byte(event.TriggerReason)},
		},
	}, nil
}

// Close - 남은 메시지를 flush하고 producer 종료
func (p *AlertProducer) Close() {
	p.closeOnce.Do(func() {
		remaining := p.producer.Flush(int(kafkaFlushTimeout.Milliseconds()))
		if remaining > 0 {
			p.logger.Warn("messages still queued after flush timeout", "remaining", remaining)
		}
		close(p.done)
		p.wg.Wait()
		p.producer.Close()
		p.logger.Info("kafka producer closed", "sent", p.sent.Load(), "acked", p.acked.Load(), "failed", p.failed.Load())
	})
}
