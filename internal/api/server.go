package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mimicryml/style-transfer/internal/jobs"
	"github.com/mimicryml/style-transfer/internal/nats"
	"github.com/mimicryml/style-transfer/internal/styles"
	"github.com/mimicryml/style-transfer/internal/websocket"
)

// Waker nudges the in-process worker pool after a submission so pickup
// does not wait for the next poll tick.
type Waker interface {
	Wake()
}

type Config struct {
	Port           string
	UploadDir      string
	MaxUploadBytes int64
}

type Server struct {
	cfg     Config
	manager *jobs.Manager
	queries *jobs.Queries
	catalog *styles.Catalog
	hub     *websocket.Hub
	waker   Waker
	events  *nats.Client
	logger  *log.Logger
}

func NewServer(cfg Config, manager *jobs.Manager, queries *jobs.Queries, catalog *styles.Catalog, hub *websocket.Hub) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	return &Server{
		cfg:     cfg,
		manager: manager,
		queries: queries,
		catalog: catalog,
		hub:     hub,
		logger:  log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

// SetWaker registers the in-process pool nudge. Optional.
func (s *Server) SetWaker(w Waker) { s.waker = w }

// SetEvents registers the NATS publisher used when workers run in a
// separate process. Optional.
func (s *Server) SetEvents(c *nats.Client) { s.events = c }

func (s *Server) Start() {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	s.logger.Printf("Starting server on %s", addr)

	mux := http.NewServeMux()
	AddRoutes(mux, s)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		s.logger.Fatalf("Failed to start server: %v", err)
	}
}
