package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"classtrack/internal/config"
	"classtrack/internal/logging"
	"classtrack/internal/notify"
	"classtrack/internal/queue"
	"classtrack/internal/roster"
	"classtrack/internal/store"
)

// Worker consumes outbox events and performs best-effort notification
// delivery: in-app feed rows plus push fan-out.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:notifications")
	}

	push := notify.NewPushClient(cfg.PushGatewayURL, cfg.PushSkip)
	if !cfg.PushSkip {
		if err := push.Health(ctx); err != nil {
			logger.Warn("push gateway not available, deliveries will be retried per event", zap.Error(err))
		} else {
			logger.Info("push gateway connected")
		}
	}

	rosterSvc := roster.NewService(roster.NewRepository(db.Client))
	dispatcher := notify.NewDispatcher(notify.NewRepository(db.Client), push, rosterSvc, logger)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for events")
	for msg := range messages {
		if msg.Type != "notify" {
			continue
		}
		evt, err := notify.DecodeEvent(msg.Body)
		if err != nil {
			logger.Warn("bad event payload", zap.Error(err))
			continue
		}
		if err := dispatcher.Handle(ctx, evt); err != nil {
			logger.Warn("event dispatch failed", zap.String("kind", evt.Kind), zap.Error(err))
		}
	}

	logger.Info("worker stopped")
}
