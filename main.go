package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/postfeed/cmd/seed"
	"example.com/postfeed/cmd/server"
	"example.com/postfeed/cmd/worker"
	appkafka "example.com/postfeed/internal/broker"
	"example.com/postfeed/internal/cache"
	config "example.com/postfeed/internal/init"
	"example.com/postfeed/internal/logger"
	"example.com/postfeed/internal/media"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	mode := cfg.Mode

	// Open the database and apply pending migrations
	st, err := store.New()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer st.Close()

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kafkaCfg := appkafka.ConfigFrom(cfg)

	switch mode {
	case config.ModeServer:
		runServer(ctx, cfg, st, kafkaCfg)
	case config.ModeWorker:
		// Consume domain events and record them in the activity journal
		reader := appkafka.NewGroupReader(kafkaCfg)
		defer reader.Close()
		w := worker.New(st, reader, 0, 0)
		w.Run(ctx)
	case config.ModeSeed:
		if err := seed.Run(ctx, st, cfg.SeedFile); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	case config.ModeMigrate:
		// store.New already applied the migrations
		log.Println("Migrations applied")
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}

func runServer(ctx context.Context, cfg *config.Config, st store.StoreInterface, kafkaCfg appkafka.Config) {
	pageCache, err := cache.New()
	if err != nil {
		log.Fatalf("Cache init failed: %v", err)
	}
	defer pageCache.Close()

	renderer, err := render.New()
	if err != nil {
		log.Fatalf("Template parsing failed: %v", err)
	}

	// Events go to Kafka when enabled, otherwise they are dropped
	var writer appkafka.EventWriter = appkafka.DiscardWriter{}
	if cfg.KafkaEnabled {
		writer, err = appkafka.DialWriter(ctx, kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
	}
	publisher := appkafka.NewPublisher(writer)
	defer publisher.Close()

	s := server.New(server.Deps{
		Store:     st,
		Cache:     pageCache,
		CacheTTL:  cfg.CacheTTL,
		Renderer:  renderer,
		Media:     media.New(cfg.MediaRoot),
		Publisher: publisher,
		Auth:      middleware.NewAuth(cfg.JWTSecret, cfg.TokenTTL),
	})
	server.Run(ctx, s, cfg.ServerAddr, cfg.TLSCert, cfg.TLSKey)
}
