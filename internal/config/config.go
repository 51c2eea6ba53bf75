// 서비스 설정을 환경변수에서 읽어 구조체로 묶는다.
//
// Load는 .env 파일을 먼저 읽고 (없으면 무시), 그 위에 실제 환경변수를 적용한다.
// 기본값은 로컬 단독 실행 기준이다 (SQLite, 로컬 디스크, Kafka/Slack 비활성화).

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	Classifier ClassifierConfig
	Verifier   VerifierConfig
	Events     EventsConfig
	Kafka      KafkaConfig
	Slack      SlackConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	Dir       string
	URLPrefix string
}

// StoreConfig - Alert 저장소 백엔드 선택 (sqlite | postgres)
type StoreConfig struct {
	Backend    string
	SQLitePath string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// ClassifierConfig - Stage 1 (YOLOv8 ONNX) 설정
type ClassifierConfig struct {
	ModelPath     string
	SharedLibPath string
	Confidence    float64
	IoU           float64
	PoolSize      int
}

// VerifierConfig - Stage 2 (Gemini) 설정
// Timeout이 0이면 호출 시간을 제한하지 않는다.
type VerifierConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type EventsConfig struct {
	Fanout    string
	Keepalive time.Duration
}

// KafkaConfig - BootstrapServers가 비어 있으면 relay를 띄우지 않는다.
type KafkaConfig struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
	Acks             string
	CompressionType  string
}

type SlackConfig struct {
	BotToken      string
	ChannelID     string
	PublicBaseURL string
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "8000"),
			AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
		},
		Storage: StorageConfig{
			Dir:       getenv("STORAGE_DIR", "storage/alerts"),
			URLPrefix: getenv("STORAGE_URL_PREFIX", "/storage/alerts"),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getenv("ALERT_STORE", "sqlite")),
			SQLitePath: getenv("SQLITE_PATH", "railguard.db"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Classifier: ClassifierConfig{
			ModelPath:     getenv("YOLO_MODEL_PATH", "yolov8n.onnx"),
			SharedLibPath: os.Getenv("ONNXRUNTIME_LIB"),
			Confidence:    getenvFloat("YOLO_CONFIDENCE", 0.25),
			IoU:           getenvFloat("YOLO_IOU", 0.45),
			PoolSize:      getenvInt("YOLO_POOL_SIZE", 2),
		},
		Verifier: VerifierConfig{
			APIKey:  getenv("GEMINI_API_KEY", os.Getenv("AI_API_KEY")),
			Model:   getenv("GEMINI_MODEL", "gemini-2.5-pro"),
			Timeout: getenvDuration("VERIFIER_TIMEOUT", 0),
		},
		Events: EventsConfig{
			Fanout:    strings.ToLower(getenv("EVENTS_FANOUT", "broadcast")),
			Keepalive: getenvDuration("SSE_KEEPALIVE", 15*time.Second),
		},
		Kafka: KafkaConfig{
			BootstrapServers: os.Getenv("KAFKA_BOOTSTRAP_SERVERS"),
			SecurityProtocol: getenv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
			SASLMechanism:    os.Getenv("KAFKA_SASL_MECHANISM"),
			SASLUsername:     os.Getenv("KAFKA_SASL_USERNAME"),
			SASLPassword:     os.Getenv("KAFKA_SASL_PASSWORD"),
			Topic:            getenv("KAFKA_TOPIC", "railguard-alerts"),
			Acks:             getenv("KAFKA_ACKS", "all"),
			CompressionType:  getenv("KAFKA_COMPRESSION_TYPE", "snappy"),
		},
		Slack: SlackConfig{
			BotToken:      os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID:     os.Getenv("SLACK_CHANNEL_ID"),
			PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
