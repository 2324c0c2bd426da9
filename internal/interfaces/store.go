package interfaces

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus represents the current state of a transformation job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are permitted.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrNotFound is returned when a job id does not exist in the store.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateID is returned when creating a job whose id already
	// exists. Ids are random UUIDs, so this is defensive only.
	ErrDuplicateID = errors.New("job id already exists")

	// ErrNotPending is returned by SetProcessing when the job is no
	// longer pending, i.e. another worker already claimed it.
	ErrNotPending = errors.New("job is not pending")

	// ErrNotProcessing is returned by the terminal transitions when the
	// job is not in the processing state.
	ErrNotProcessing = errors.New("job is not processing")
)

// Job is one request to transform one uploaded image with one named style.
//
// Everything except status and the terminal fields is immutable after
// creation. Status only moves forward through
// pending -> processing -> completed|failed; output_path and
// processing_time are set together on completion, error_message on
// failure, and the two sets are mutually exclusive.
type Job struct {
	ID               string     `json:"job_id"`
	SessionID        string     `json:"session_id"`
	OriginalFilename string     `json:"original_filename"`
	OriginalPath     string     `json:"original_path"`
	StyleName        string     `json:"style_name"`
	Status           JobStatus  `json:"status"`
	OutputPath       string     `json:"output_path,omitempty"`
	ProcessingTime   float64    `json:"processing_time,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// String returns a short representation of the job for logs
func (j *Job) String() string {
	return fmt.Sprintf("Job{ID: %s, Style: %s, Status: %s}", j.ID, j.StyleName, j.Status)
}

// JobStore is the durable record of job metadata, keyed by job id.
//
// Implementations must be safe for many concurrent readers and many
// concurrent single-record writers. Mutations are atomic with respect to
// reads: a reader never observes a completed job without an output path,
// nor a failed job without an error message.
type JobStore interface {
	// Create inserts a new pending job. Returns ErrDuplicateID if the
	// id is already taken.
	Create(job *Job) error

	// Get returns the job or ErrNotFound.
	Get(id string) (*Job, error)

	// ListBySession returns all jobs for the session, newest first.
	ListBySession(sessionID string) ([]*Job, error)

	// ListRecentCompleted returns up to limit completed jobs, newest first.
	ListRecentCompleted(limit int) ([]*Job, error)

	// NextPending returns the oldest pending job, or (nil, nil) when
	// there is none. It does not claim the job; callers must claim it
	// with SetProcessing before executing it.
	NextPending() (*Job, error)

	// SetProcessing transitions pending -> processing. The update is
	// conditional on the current status, so at most one caller can win
	// the claim; losers get ErrNotPending.
	SetProcessing(id string) error

	// SetCompleted transitions processing -> completed, recording the
	// output location, the measured duration and the completion time.
	SetCompleted(id, outputPath string, processingTime float64) error

	// SetFailed transitions processing -> failed with a non-empty
	// error description.
	SetFailed(id, errorMessage string) error
}
