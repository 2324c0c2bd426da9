package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/logger"
	"github.com/mimicryml/style-transfer/internal/nats"
	"github.com/mimicryml/style-transfer/internal/styles"
	"github.com/mimicryml/style-transfer/internal/websocket"
)

const defaultMaxUploadBytes = 10 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func AddRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("/transform", correlationMiddleware(s.handleTransform))
	mux.HandleFunc("/status/", correlationMiddleware(s.handleStatus))
	mux.HandleFunc("/result/", correlationMiddleware(s.handleResult))
	mux.HandleFunc("/history/", correlationMiddleware(s.handleHistory))
	mux.HandleFunc("/gallery", correlationMiddleware(s.handleGallery))
	mux.HandleFunc("/styles", s.handleStyles)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.HandleWebSocket(s.hub, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/health/ready", HandleReadiness)
	mux.HandleFunc("/health/live", HandleLiveness)
	mux.HandleFunc("/", handleRoot)
}

func correlationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx := r.Context()
		ctx = context.WithValue(ctx, "correlation_id", correlationID)
		r = r.WithContext(ctx)
		next(w, r)
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "AI Style Transfer API",
		"status":  "running",
		"endpoints": map[string]string{
			"transform": "/transform",
			"status":    "/status/{job_id}",
			"result":    "/result/{job_id}",
			"history":   "/history/{session_id}",
			"gallery":   "/gallery",
			"styles":    "/styles",
			"health":    "/health",
		},
	})
}

// handleTransform accepts the multipart upload, persists the pending job
// and returns the job id immediately. The transformation itself runs in
// the worker pool; the client polls /status or listens on /ws.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	correlationID := getCorrelationID(r.Context())
	log := logger.WithCorrelationID(correlationID)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		log.Warn().Err(err).Msg("Invalid multipart upload")
		http.Error(w, "Invalid upload or file too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadBytes {
		http.Error(w, fmt.Sprintf("File exceeds the %d byte limit", s.cfg.MaxUploadBytes), http.StatusBadRequest)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		http.Error(w, "Invalid file type. Allowed: .jpg, .jpeg, .png", http.StatusBadRequest)
		return
	}

	styleName := r.FormValue("style")
	if styleName == "" {
		styleName = "vangogh"
	}

	// Reject unknown styles before anything is persisted, upload included.
	if _, err := s.catalog.Resolve(styleName); err != nil {
		log.Warn().Str("style", styleName).Msg("Unknown style requested")
		http.Error(w, "Invalid style. See /styles for the catalog", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		log.Error().Err(err).Msg("Failed to ensure upload dir")
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	inputPath := filepath.Join(s.cfg.UploadDir, uuid.New().String()+ext)
	out, err := os.Create(inputPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create upload file")
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	if _, err := out.ReadFrom(file); err != nil {
		out.Close()
		log.Error().Err(err).Msg("Failed to persist upload")
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	out.Close()

	job, err := s.manager.Submit(r.FormValue("session_id"), header.Filename, inputPath, styleName)
	if err != nil {
		// No job record exists, so the saved upload would be orphaned.
		os.Remove(inputPath)
		if errors.Is(err, styles.ErrUnknownStyle) {
			http.Error(w, "Invalid style. See /styles for the catalog", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Failed to submit job")
		http.Error(w, "Failed to submit job", http.StatusInternalServerError)
		return
	}

	s.dispatch(job)
	s.hub.NotifyJobUpdate(job)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"session_id": job.SessionID,
		"status":     job.Status,
		"message":    "Image uploaded successfully. Processing started.",
	})
}

// dispatch nudges whichever execution path is wired: the in-process pool,
// the message bus for external workers, or both. The pending record is
// already durable, so a failed nudge only delays pickup.
func (s *Server) dispatch(job *interfaces.Job) {
	if s.waker != nil {
		s.waker.Wake()
	}
	if s.events != nil {
		err := s.events.PublishJobCreated(&nats.JobCreatedMessage{
			JobID:     job.ID,
			StyleName: job.StyleName,
		})
		if err != nil {
			logger.WithJobID(job.ID).Warn().Err(err).Msg("Failed to publish job-created event")
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/status/")
	if jobID == "" {
		http.Error(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	job, err := s.queries.Status(jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/result/")
	if jobID == "" {
		http.Error(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	job, err := s.queries.Status(jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	if job.Status != interfaces.StatusCompleted {
		http.Error(w, fmt.Sprintf("Job not completed. Current status: %s", job.Status), http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(job.OutputPath); err != nil {
		http.Error(w, "Result file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=stylized_%s.jpg", job.ID))
	http.ServeFile(w, r, job.OutputPath)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/history/")
	if sessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	history, err := s.queries.History(sessionID)
	if err != nil {
		logger.WithSessionID(sessionID).Error().Err(err).Msg("Failed to load history")
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":      sessionID,
		"count":           len(history),
		"transformations": history,
	})
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	gallery, err := s.queries.Gallery(limit)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to load gallery")
		http.Error(w, "Failed to load gallery", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":           len(gallery),
		"transformations": gallery,
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list := s.catalog.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"styles": list,
		"count":  len(list),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value("correlation_id").(string); ok {
		return id
	}
	return ""
}
