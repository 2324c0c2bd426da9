package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mimicryml/style-transfer/internal/api"
	"github.com/mimicryml/style-transfer/internal/db"
	"github.com/mimicryml/style-transfer/internal/engine"
	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/jobs"
	"github.com/mimicryml/style-transfer/internal/logger"
	"github.com/mimicryml/style-transfer/internal/memstore"
	"github.com/mimicryml/style-transfer/internal/nats"
	"github.com/mimicryml/style-transfer/internal/styles"
	"github.com/mimicryml/style-transfer/internal/websocket"
	"github.com/mimicryml/style-transfer/internal/worker"
)

const (
	maxUploadBytes = 10 * 1024 * 1024
	migrationsDir  = "migrations"
)

func main() {
	logger.Init("style-transfer-server")

	port := envOr("PORT", "8080")
	workerCount := envInt("WORKER_COUNT", 3)
	uploadDir := envOr("UPLOAD_DIR", "uploads")
	outputDir := envOr("OUTPUT_DIR", "outputs")
	styleDir := envOr("STYLE_DIR", filepath.Join("models", "style_images"))
	jobTimeout := time.Duration(envInt("JOB_TIMEOUT_SECONDS", 0)) * time.Second

	logger.Logger.Info().Str("port", port).Msg("Starting style-transfer server")

	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Logger.Fatal().Err(err).Str("dir", dir).Msg("Failed to create directory")
		}
	}

	var store interfaces.JobStore
	if os.Getenv("STORE") == "memory" {
		logger.Logger.Warn().Msg("Using in-memory job store; records will not survive a restart")
		store = memstore.New()
	} else {
		database, err := db.Connect(db.DefaultConfig())
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		if err := db.RunMigrations(database, migrationsDir); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
		}

		api.SetDBConnection(database)
		store = db.NewStore(database)
	}

	catalog := styles.NewCatalog(styleDir)
	eng := engine.Load()

	manager := jobs.NewManager(store, catalog)
	queries := jobs.NewQueries(store)

	hub := websocket.NewHub()
	go hub.Run()

	pool := worker.NewPool(store, eng, catalog, outputDir, workerCount, jobTimeout)
	pool.SetNotifier(hub)
	pool.Start()

	server := api.NewServer(api.Config{
		Port:           port,
		UploadDir:      uploadDir,
		MaxUploadBytes: maxUploadBytes,
	}, manager, queries, catalog, hub)
	server.SetWaker(pool)

	// With external workers, submissions are also announced on the bus
	// and their status events are fed back into the websocket hub.
	var natsServer *nats.Server
	if os.Getenv("USE_NATS") == "true" {
		natsURL := os.Getenv("NATS_URL")

		client, err := nats.NewClient(natsURL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect NATS publisher")
		}
		defer client.Close()
		server.SetEvents(client)

		consumer, err := nats.NewServer(natsURL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect NATS consumer")
		}
		if err := consumer.SubscribeStatus(func(msg *nats.JobStatusMessage) {
			hub.NotifyJobUpdate(msg.Job())
		}); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to job-status events")
		}
		natsServer = consumer
		logger.Logger.Info().Msg("NATS event bridge started")
	}

	go server.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	pool.Stop()
	if natsServer != nil {
		natsServer.Close()
	}
	logger.Logger.Info().Msg("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
