package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/railguard/backend/internal/client"
	"github.com/railguard/backend/internal/config"
	"github.com/railguard/backend/internal/db"
	"github.com/railguard/backend/internal/handler"
	"github.com/railguard/backend/internal/logging"
	"github.com/railguard/backend/internal/service"
	"github.com/railguard/backend/internal/storage"
)

// alertStore - 선택한 백엔드 (SQLite | Postgres)
type alertStore interface {
	service.AlertRepo
	Close() error
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Alert 저장소
	store, dbLabel, err := openAlertStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. 이미지 저장소
	blobs, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.URLPrefix)
	if err != nil {
		return err
	}

	// 3. Stage 1 / Stage 2 (초기화 실패 시 DANGER로 degrade 되도록 대체 구현 사용)
	var classifier service.FastClassifier
	yolo, err := client.NewYOLOClassifier(cfg.Classifier, logger)
	if err != nil {
		logger.Warn("yolo classifier unavailable, every frame will be escalated", slog.Any("error", xerrors.New(err)))
		classifier = client.Unavailable{Component: "classifier", Err: err}
	} else {
		defer yolo.Close()
		classifier = yolo
	}

	var verifier service.Verifier
	gemini, err := client.NewGeminiVerifier(ctx, cfg.Verifier, logger)
	if err != nil {
		logger.Warn("gemini verifier unavailable, verified frames will be marked DANGER", slog.Any("error", xerrors.New(err)))
		verifier = client.Unavailable{Component: "verifier", Err: err}
	} else {
		verifier = gemini
	}

	// 4. 이벤트 전파 + 외부 relay
	fanout, err := service.ParseFanoutMode(cfg.Events.Fanout)
	if err != nil {
		return err
	}
	broadcaster := service.NewBroadcaster(fanout, logger)

	var sinks []service.AlertSink
	if slack := client.NewSlackClient(cfg.Slack); slack.IsConfigured() {
		sinks = append(sinks, slack)
	}
	if cfg.Kafka.BootstrapServers != "" {
		producer, err := client.NewAlertProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Warn("kafka relay disabled", slog.Any("error", xerrors.New(err)))
		} else {
			defer producer.Close()
			sinks = append(sinks, producer)
		}
	}
	relayCtx, stopRelays := context.WithCancel(context.Background())
	relaysDone := service.NewRelay(broadcaster, logger, sinks...).Start(relayCtx)

	// 5. 서비스 + 핸들러
	pipeline := service.NewPipelineService(classifier, verifier, blobs, store, broadcaster, cfg.Verifier, logger)
	alertService := service.NewAlertService(store, logger)

	router := handler.NewRouter(handler.Handlers{
		Analyze: handler.NewAnalyzeHandler(pipeline, logger),
		Alerts:  handler.NewAlertHandler(alertService, logger),
		Events:  handler.NewEventsHandler(broadcaster, cfg.Events.Keepalive, logger),
		Health: handler.NewHealthHandler(handler.HealthInfo{
			Database:   dbLabel,
			Storage:    "Local Disk (" + cfg.Storage.Dir + ")",
			Realtime:   "Server-Sent Events (SSE)",
			AIPipeline: "YOLOv8 Nano → " + cfg.Verifier.Model,
		}),
	}, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StorageDir:     blobs.Dir(),
		StoragePrefix:  blobs.URLPrefix(),
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// 종료 신호 시 요청 context가 취소되어 SSE 스트림이 끝난다
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("railguard listening", "addr", srv.Addr, "database", dbLabel, "fanout", fanout, "relays", len(sinks))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stopRelays()
		<-relaysDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete", "error", err)
		_ = srv.Close()
	}
	stopRelays()
	<-relaysDone
	return nil
}

func openAlertStore(ctx context.Context, cfg config.Config) (alertStore, string, error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		store, err := db.NewSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return store, "SQLite (Local)", nil
	case "postgres":
		pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, "", err
		}
		store := db.NewPostgres(pool)
		if err := store.EnsureAlertSchema(ctx); err != nil {
			store.Close()
			return nil, "", err
		}
		return store, "PostgreSQL", nil
	default:
		return nil, "", fmt.Errorf("unknown ALERT_STORE %q (expected sqlite or postgres)", cfg.Store.Backend)
	}
}
