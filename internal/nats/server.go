package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/mimicryml/style-transfer/internal/logger"
)

// Server consumes job lifecycle events from NATS
type Server struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

func NewServer(url string) (*Server, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Server{conn: conn}, nil
}

// SubscribeCreated invokes handler for every job-created event
func (s *Server) SubscribeCreated(handler func(*JobCreatedMessage)) error {
	sub, err := s.conn.Subscribe(JobCreatedSubject, func(msg *nats.Msg) {
		var created JobCreatedMessage
		if err := json.Unmarshal(msg.Data, &created); err != nil {
			logger.Logger.Warn().Err(err).Msg("Dropping malformed job-created event")
			return
		}
		handler(&created)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", JobCreatedSubject, err)
	}

	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeStatus invokes handler for every job status transition
func (s *Server) SubscribeStatus(handler func(*JobStatusMessage)) error {
	sub, err := s.conn.Subscribe(JobStatusSubject, func(msg *nats.Msg) {
		var status JobStatusMessage
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			logger.Logger.Warn().Err(err).Msg("Dropping malformed job-status event")
			return
		}
		handler(&status)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", JobStatusSubject, err)
	}

	s.subs = append(s.subs, sub)
	return nil
}

func (s *Server) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
