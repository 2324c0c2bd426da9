package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mimicryml/style-transfer/internal/interfaces"
)

const uniqueViolation = "23505"

// Store handles database operations for transformation jobs
type Store struct {
	db *sql.DB
}

var _ interfaces.JobStore = (*Store)(nil)

// NewStore creates a new database store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `job_id, session_id, original_filename, original_path, style_name,
	status, output_path, processing_time, error_message, created_at, completed_at`

// Create inserts a new job record
func (s *Store) Create(job *interfaces.Job) error {
	query := `
		INSERT INTO transformations
			(job_id, session_id, original_filename, original_path, style_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(query,
		job.ID, job.SessionID, job.OriginalFilename, job.OriginalPath,
		job.StyleName, job.Status, job.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return interfaces.ErrDuplicateID
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID
func (s *Store) Get(id string) (*interfaces.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM transformations WHERE job_id = $1`

	job, err := scanJob(s.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListBySession retrieves all jobs for a session, newest first
func (s *Store) ListBySession(sessionID string) ([]*interfaces.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM transformations
		WHERE session_id = $1
		ORDER BY created_at DESC, job_id DESC
	`
	return s.queryJobs(query, sessionID)
}

// ListRecentCompleted retrieves up to limit completed jobs, newest first
func (s *Store) ListRecentCompleted(limit int) ([]*interfaces.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM transformations
		WHERE status = 'completed'
		ORDER BY created_at DESC, job_id DESC
		LIMIT $1
	`
	return s.queryJobs(query, limit)
}

// NextPending retrieves the oldest pending job, or nil when there is none
func (s *Store) NextPending() (*interfaces.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM transformations
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
	`

	job, err := scanJob(s.db.QueryRow(query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending job: %w", err)
	}
	return job, nil
}

// SetProcessing claims a pending job. The status predicate makes the
// update conditional, so concurrent workers racing for the same job get
// exactly one winner; everyone else sees ErrNotPending.
func (s *Store) SetProcessing(id string) error {
	query := `UPDATE transformations SET status = 'processing' WHERE job_id = $1 AND status = 'pending'`

	return s.transition(query, interfaces.ErrNotPending, id)
}

// SetCompleted commits the successful terminal state
func (s *Store) SetCompleted(id, outputPath string, processingTime float64) error {
	query := `
		UPDATE transformations
		SET status = 'completed', output_path = $2, processing_time = $3, completed_at = NOW()
		WHERE job_id = $1 AND status = 'processing'
	`
	return s.transition(query, interfaces.ErrNotProcessing, id, outputPath, processingTime)
}

// SetFailed commits the failed terminal state
func (s *Store) SetFailed(id, errorMessage string) error {
	query := `
		UPDATE transformations
		SET status = 'failed', error_message = $2, completed_at = NOW()
		WHERE job_id = $1 AND status = 'processing'
	`
	return s.transition(query, interfaces.ErrNotProcessing, id, errorMessage)
}

func (s *Store) transition(query string, conflict error, args ...interface{}) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return conflict
	}
	return nil
}

func (s *Store) queryJobs(query string, args ...interface{}) ([]*interfaces.Job, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*interfaces.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*interfaces.Job, error) {
	job := &interfaces.Job{}
	var (
		outputPath     sql.NullString
		processingTime sql.NullFloat64
		errorMessage   sql.NullString
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.SessionID, &job.OriginalFilename, &job.OriginalPath,
		&job.StyleName, &job.Status, &outputPath, &processingTime,
		&errorMessage, &job.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.OutputPath = outputPath.String
	job.ProcessingTime = processingTime.Float64
	job.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return job, nil
}
