package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mimicryml/style-transfer/internal/db"
	"github.com/mimicryml/style-transfer/internal/engine"
	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/logger"
	"github.com/mimicryml/style-transfer/internal/nats"
	"github.com/mimicryml/style-transfer/internal/styles"
	"github.com/mimicryml/style-transfer/internal/worker"
)

const migrationsDir = "migrations"

// statusPublisher forwards pool transitions onto the message bus so API
// processes can fan them out to websocket clients.
type statusPublisher struct {
	client *nats.Client
}

func (p *statusPublisher) NotifyJobUpdate(job *interfaces.Job) {
	err := p.client.PublishJobStatus(&nats.JobStatusMessage{
		JobID:          job.ID,
		SessionID:      job.SessionID,
		Status:         string(job.Status),
		OutputPath:     job.OutputPath,
		ProcessingTime: job.ProcessingTime,
		Error:          job.ErrorMessage,
	})
	if err != nil {
		logger.WithJobID(job.ID).Warn().Err(err).Msg("Failed to publish job-status event")
	}
}

func main() {
	logger.Init("style-transfer-worker")

	workerCount := envInt("WORKER_COUNT", 3)
	outputDir := envOr("OUTPUT_DIR", "outputs")
	styleDir := envOr("STYLE_DIR", filepath.Join("models", "style_images"))
	jobTimeout := time.Duration(envInt("JOB_TIMEOUT_SECONDS", 0)) * time.Second

	logger.Logger.Info().Int("worker_count", workerCount).Msg("Starting style-transfer worker")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create output directory")
	}

	database, err := db.Connect(db.DefaultConfig())
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if err := db.RunMigrations(database, migrationsDir); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	store := db.NewStore(database)
	catalog := styles.NewCatalog(styleDir)
	eng := engine.Load()

	pool := worker.NewPool(store, eng, catalog, outputDir, workerCount, jobTimeout)

	var natsServer *nats.Server
	if os.Getenv("USE_NATS") == "true" {
		natsURL := os.Getenv("NATS_URL")

		client, err := nats.NewClient(natsURL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect NATS publisher")
		}
		defer client.Close()
		pool.SetNotifier(&statusPublisher{client: client})

		server, err := nats.NewServer(natsURL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect NATS consumer")
		}
		if err := server.SubscribeCreated(func(msg *nats.JobCreatedMessage) {
			pool.Wake()
		}); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to job-created events")
		}
		natsServer = server
		logger.Logger.Info().Msg("NATS consumer started")
	}

	pool.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	pool.Stop()
	if natsServer != nil {
		natsServer.Close()
	}
	logger.Logger.Info().Msg("Worker stopped")
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
