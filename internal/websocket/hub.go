package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/logger"
	"github.com/mimicryml/style-transfer/internal/metrics"
)

// Hub tracks connected websocket clients and fans job updates out to
// them. Clients that fail a write are dropped.
type Hub struct {
	mu         sync.Mutex
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewHub creates an empty hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run processes registrations and broadcasts until the process exits
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			logger.Logger.Debug().Int("clients", h.clientCount()).Msg("Websocket client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			logger.Logger.Debug().Int("clients", h.clientCount()).Msg("Websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a raw message for every connected client
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logger.Logger.Warn().Msg("Websocket broadcast buffer full, dropping message")
	}
}

// NotifyJobUpdate implements worker.Notifier: every transition the pool
// commits is pushed to connected clients as a job_update message.
func (h *Hub) NotifyJobUpdate(job *interfaces.Job) {
	update := map[string]interface{}{
		"type":   "job_update",
		"job_id": job.ID,
		"status": job.Status,
	}
	if job.Status == interfaces.StatusCompleted {
		update["output_path"] = job.OutputPath
		update["processing_time"] = job.ProcessingTime
	}
	if job.Status == interfaces.StatusFailed && job.ErrorMessage != "" {
		update["error"] = job.ErrorMessage
	}

	message, err := json.Marshal(update)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to marshal job update")
		return
	}
	h.Broadcast(message)
}
