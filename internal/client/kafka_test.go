package client

import (
	"encoding/json"
	"testing"

	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/model"
)

func TestBuildAlertMessage(t *testing.T) {
	ev := model.NewLiveAlertEvent(model.Alert{ID: 17, TriggerReason: "HOLE", FinalStatus: model.StatusDanger, YoloDetections: "[]"})

	msg, err := buildAlertMessage("railguard-alerts", ev)
	if err != nil {
		t.Fatalf("buildAlertMessage: %v", err)
	}
	if *msg.TopicPartition.Topic != "railguard-alerts" || string(msg.Key) != "17" {
		t.Fatalf("unexpected routing topic=%q key=%q", *msg.TopicPartition.Topic, msg.Key)
	}

	var decoded model.Alert
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not alert JSON: %v", err)
	}
	if decoded.ID != 17 || decoded.FinalStatus != model.StatusDanger {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["final_status"] != "DANGER" || headers["trigger_reason"] != "HOLE" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestProducerConfigSASL(t *testing.T) {
	plain := producerConfig(config.KafkaConfig{BootstrapServers: "k:9092", SecurityProtocol: "PLAINTEXT", Acks: "all", CompressionType: "snappy"})
	if _, err := plain.Get("sasl.mechanism", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, _ := plain.Get("sasl.mechanism", nil); v != nil {
		t.Fatalf("sasl must be unset without mechanism, got %v", v)
	}

	secured := producerConfig(config.KafkaConfig{BootstrapServers: "k:9092", SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"})
	if v, _ := secured.Get("sasl.username", nil); v != "u" {
		t.Fatalf("expected sasl.username, got %v", v)
	}
}
