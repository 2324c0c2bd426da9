package nats

import "github.com/mimicryml/style-transfer/internal/interfaces"

const (
	// JobCreatedSubject carries wake-up events published after a pending
	// record is durable, so workers poll immediately instead of waiting
	// for the next tick. The database remains the source of truth; a
	// lost event only delays pickup until the next poll.
	JobCreatedSubject = "jobs.created"

	// JobStatusSubject carries transition events published by the worker
	// pool, consumed by API processes for websocket fan-out.
	JobStatusSubject = "jobs.status"
)

type JobCreatedMessage struct {
	JobID     string `json:"job_id"`
	StyleName string `json:"style_name"`
}

type JobStatusMessage struct {
	JobID          string  `json:"job_id"`
	SessionID      string  `json:"session_id"`
	Status         string  `json:"status"`
	OutputPath     string  `json:"output_path,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Job converts the event back into a job record so consumers can reuse
// the same fan-out paths as the in-process pool.
func (m *JobStatusMessage) Job() *interfaces.Job {
	return &interfaces.Job{
		ID:             m.JobID,
		SessionID:      m.SessionID,
		Status:         interfaces.JobStatus(m.Status),
		OutputPath:     m.OutputPath,
		ProcessingTime: m.ProcessingTime,
		ErrorMessage:   m.Error,
	}
}
