package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/realtime-service/internal/api"
	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/broadcast"
	"github.com/fathima-sithara/realtime-service/internal/config"
	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/kafka"
	"github.com/fathima-sithara/realtime-service/internal/logger"
	redisstore "github.com/fathima-sithara/realtime-service/internal/redis"
	"github.com/fathima-sithara/realtime-service/internal/relay"
	"github.com/fathima-sithara/realtime-service/internal/rooms"
	"github.com/fathima-sithara/realtime-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.App.JWTSecret == "" {
		log.Fatal("jwt secret is required")
	}

	zlog, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	verifier := auth.NewVerifier(cfg.App.JWTSecret)

	var dir rooms.Directory
	var mongoClient *mongo.Client
	if cfg.Mongo.URI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		cancel()
		if err != nil {
			zlog.Fatalw("mongo connect failed", "error", err)
		}
		dir = rooms.NewMongoDirectory(mongoClient.Database(cfg.Mongo.Database).Collection("rooms"))
		zlog.Infow("room directory backed by mongo", "database", cfg.Mongo.Database)
	} else {
		dir = rooms.NewMemoryDirectory()
		zlog.Warn("no mongo uri configured, room directory is in-memory")
	}

	var mirror ws.Mirror
	if cfg.Redis.Addr != "" {
		rc := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Pass,
			DB:       cfg.Redis.DB,
		})
		mirror = redisstore.NewStore(rc, cfg.Redis.Prefix)
		zlog.Infow("presence mirror enabled", "addr", cfg.Redis.Addr)
	}

	var events *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		events = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRoomEvents, zlog)
		zlog.Infow("room event export enabled", "topic", cfg.Kafka.TopicRoomEvents)
	}

	registry := hub.New()
	signalRelay := relay.New(registry, zlog)
	drawChannel := broadcast.NewDrawChannel(registry, zlog)
	chatChannel := broadcast.NewChatChannel(registry, zlog)
	presence := broadcast.NewPresence(registry, zlog)

	handler := ws.NewHandler(registry, signalRelay, drawChannel, chatChannel, presence, dir, mirror, events, zlog)
	wsSrv := ws.NewServer(cfg, verifier, handler, zlog)
	app := api.NewServer(wsSrv, registry, dir, verifier)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		zlog.Infow("realtime service listening", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zlog.Fatalw("server error", "error", e)
	case s := <-sig:
		zlog.Infow("signal received, shutting down", "signal", s.String())
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Warnw("fiber shutdown", "error", err)
	}
	if events != nil {
		if err := events.Close(); err != nil {
			zlog.Warnw("kafka close", "error", err)
		}
	}
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = mongoClient.Disconnect(ctx)
		cancel()
	}
	zlog.Info("shutdown complete")
}
