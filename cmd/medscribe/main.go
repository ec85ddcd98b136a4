// Command medscribe serves the clinical consultation transcription API:
// audio upload, speaker-attributed transcription, session management, and
// transcript export.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/medscribe/internal/config"
	"github.com/kbukum/medscribe/internal/database"
	"github.com/kbukum/medscribe/internal/llm/ollama"
	"github.com/kbukum/medscribe/internal/logger"
	"github.com/kbukum/medscribe/internal/server"
	"github.com/kbukum/medscribe/internal/session"
	"github.com/kbukum/medscribe/internal/storage"
	"github.com/kbukum/medscribe/internal/summary"
	"github.com/kbukum/medscribe/internal/transcription"
	"github.com/kbukum/medscribe/internal/transcription/mock"
	"github.com/kbukum/medscribe/internal/transcription/whisper"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml (optional)")
	envFile := flag.String("env", "", "path to .env file (optional)")
	flag.Parse()

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		logger.NewDefault(config.ServiceName).Fatal("Failed to load configuration", logger.ErrorFields("load_config", err))
	}

	log := logger.New(&cfg.Logger, config.ServiceName)
	logger.SetGlobalLogger(log)

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to open database", logger.ErrorFields("open_database", err))
	}

	store, err := session.NewStore(db, log)
	if err != nil {
		log.Fatal("Failed to initialize session store", logger.ErrorFields("init_store", err))
	}

	blobs, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize audio storage", logger.ErrorFields("init_storage", err))
	}

	var engine transcription.Provider
	switch cfg.Transcription.Provider {
	case "mock":
		engine = mock.NewProvider()
	default:
		engine = whisper.NewProvider(cfg.Transcription.Whisper)
	}
	log.Info("Transcription provider selected", logger.Fields("provider", engine.Name()))

	var summarizer session.Summarizer
	if cfg.Summary.Enabled {
		summarizer = summary.NewGenerator(ollama.NewProvider(cfg.Ollama), cfg.Summary, log)
	}

	svc := session.NewService(store, blobs, engine, summarizer, cfg.Pipeline, log)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	server.NewHandlers(store, svc, blobs, engine, log).Register(srv.GinEngine())

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		log.Fatal("Failed to start server", logger.ErrorFields("start_server", err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := srv.Stop(ctx); err != nil {
		log.Error("Shutdown error", logger.ErrorFields("stop_server", err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
