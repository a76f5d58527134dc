package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/euOvictin/messaging-service/internal/api"
	"github.com/euOvictin/messaging-service/internal/auth"
	"github.com/euOvictin/messaging-service/internal/config"
	"github.com/euOvictin/messaging-service/internal/events"
	"github.com/euOvictin/messaging-service/internal/logger"
	"github.com/euOvictin/messaging-service/internal/presence"
	"github.com/euOvictin/messaging-service/internal/repository"
	"github.com/euOvictin/messaging-service/internal/service"
	"github.com/euOvictin/messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	var verifier *auth.Verifier
	if strings.ToUpper(cfg.JWT.Alg) == "RS256" {
		verifier, err = auth.NewVerifierRS256(cfg.JWT.PublicKeyPath)
	} else {
		verifier, err = auth.NewVerifierHS256(cfg.JWT.HSSecret)
	}
	if err != nil {
		zlog.Fatalw("jwt verifier init", "error", err)
	}

	mongoClient, err := repository.NewMongoClient(context.Background(), cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongodb connect", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()
	store := repository.NewMessageRepository(mongoClient.Database(cfg.Mongo.DB))
	zlog.Infow("mongodb connected", "database", cfg.Mongo.DB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zlog.Fatalw("redis connect", "error", err)
	}
	registry := presence.NewStore(rdb, cfg.Websocket.PresenceTTL())
	zlog.Infow("redis connected", "addr", cfg.Redis.Addr)

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled() {
		prod := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = prod.Close() }()
		publisher = prod
		zlog.Infow("kafka producer ready", "topic", cfg.Kafka.Topic)
	}

	hub := ws.NewHub()
	delivery := service.NewDelivery(store, registry, hub, publisher, zlog)
	history := service.NewHistory(store, zlog)
	gateway := ws.NewGateway(hub, verifier, registry, delivery, cfg.Websocket, zlog)

	app := api.NewServer(gateway, history, verifier, store, registry)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		zlog.Infow("starting messaging service", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zlog.Fatalw("server error", "error", e)
	case s := <-sig:
		zlog.Infow("signal received", "signal", s.String())
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Warnw("shutdown", "error", err)
	}
	zlog.Infow("shut down")
}
